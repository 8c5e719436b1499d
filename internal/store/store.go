package store

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vasquezandres/clip/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound 表示槽位不存在或记录已过期。
var ErrNotFound = errors.New("session not found")

// Meta 是会话的持久化元数据，ExpiresAt 同时充当存储层的过期提示。
type Meta struct {
	SingleUse bool
	ExpiresAt int64 // Unix 毫秒
}

// Expired 判断元数据在 now 时刻是否已过期。
func (m Meta) Expired(now time.Time) bool {
	return m.ExpiresAt == 0 || now.UnixMilli() >= m.ExpiresAt
}

// SessionStore 是 actor 面向持久化的键值接口。写入自带过期时间，
// 存储层会独立回收过期记录，actor 进程消失也不会泄漏。
type SessionStore interface {
	Get(key string) (Meta, error)
	Put(key string, meta Meta) error
	Delete(key string) error
}

// GormStore 基于 gorm 的 SessionStore 实现，生产环境走 Postgres。
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get 返回未过期的会话元数据；过期但尚未被回收的记录同样按不存在处理。
func (s *GormStore) Get(key string) (Meta, error) {
	var rec models.Session
	if err := s.db.First(&rec, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Meta{}, ErrNotFound
		}
		return Meta{}, err
	}
	meta := Meta{SingleUse: rec.SingleUse, ExpiresAt: rec.ExpiresAt}
	if meta.Expired(time.Now()) {
		return Meta{}, ErrNotFound
	}
	return meta, nil
}

// Put 写入（或覆盖）会话元数据。同一个 key 永远只有一条记录。
func (s *GormStore) Put(key string, meta Meta) error {
	rec := models.Session{Key: key, SingleUse: meta.SingleUse, ExpiresAt: meta.ExpiresAt}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"single_use", "expires_at", "updated_at"}),
	}).Create(&rec).Error
}

func (s *GormStore) Delete(key string) error {
	return s.db.Delete(&models.Session{}, "key = ?", key).Error
}

// reap 物理删除所有已过期的记录，返回删除条数。
func (s *GormStore) reap(now time.Time) (int64, error) {
	res := s.db.Delete(&models.Session{}, "expires_at <= ?", now.UnixMilli())
	return res.RowsAffected, res.Error
}

// StartReaper 启动后台回收循环，直到 stop 被关闭。
// 与读路径的过期判断互为保险：即使回收停摆，Get 也不会返回过期会话。
func (s *GormStore) StartReaper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				n, err := s.reap(time.Now())
				if err != nil {
					log.Error().Err(err).Msg("session reap")
					continue
				}
				if n > 0 {
					log.Debug().Int64("reaped", n).Msg("session reap")
				}
			}
		}
	}()
}
