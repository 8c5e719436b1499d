package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vasquezandres/clip/internal/config"
	"github.com/vasquezandres/clip/internal/store"
)

// Hub 是 key → actor 的注册表：同一个 key 的所有调用（HTTP 与流）
// 都落到同一个 Room 实例上，这是整套一致性保证的来源。
// 实例按需惰性创建，观测到过期或销毁后回收。
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	store store.SessionStore
	cfg   config.Config
}

func NewHub(st store.SessionStore, cfg config.Config) *Hub {
	return &Hub{rooms: make(map[string]*Room), store: st, cfg: cfg}
}

// Room 返回 key 对应的 actor 实例，没有则惰性创建。
func (h *Hub) Room(k string) *Room {
	h.mu.RLock()
	r := h.rooms[k]
	h.mu.RUnlock()
	if r != nil {
		return r
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	r = h.rooms[k]
	if r != nil {
		return r
	}
	r = newRoom(k, h.store, h.cfg)
	h.rooms[k] = r
	return r
}

// remove 摘除一个已标记回收的实例；带指针比对，避免误删接棒的新实例。
func (h *Hub) remove(k string, r *Room) {
	h.mu.Lock()
	if h.rooms[k] == r {
		delete(h.rooms, k)
	}
	h.mu.Unlock()
}

// 以下是面向前门的操作入口。取出实例指针与执行操作之间实例可能
// 刚好被回收，遇到这种竞争就摘掉旧实例重新定位一次。

func (h *Hub) Create(k string, singleUse bool, ttlSeconds int) (int64, error) {
	for {
		r := h.Room(k)
		expiresAt, err := r.Create(singleUse, ttlSeconds)
		if errors.Is(err, errEvicted) {
			h.remove(k, r)
			continue
		}
		return expiresAt, err
	}
}

func (h *Hub) Status(k string) (store.Meta, error) {
	for {
		r := h.Room(k)
		meta, err := r.Status()
		if errors.Is(err, errEvicted) {
			h.remove(k, r)
			continue
		}
		return meta, err
	}
}

func (h *Hub) Join(k string, conn Conn) {
	for {
		r := h.Room(k)
		if r.Join(conn) {
			return
		}
		h.remove(k, r)
	}
}

// Online 返回某个 key 当前的连接数，供状态接口复用。
func (h *Hub) Online(k string) int {
	h.mu.RLock()
	r := h.rooms[k]
	h.mu.RUnlock()
	if r == nil {
		return 0
	}
	return r.ConnCount()
}

// Sweep 启动后台回收循环：周期性摘掉过期且无连接的 actor 实例。
// 被销毁的会话即使没有后续访问也不会留下空壳。
func (h *Hub) Sweep(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if n := h.sweepOnce(time.Now()); n > 0 {
					log.Debug().Int("evicted", n).Msg("room sweep")
				}
			}
		}
	}()
}

func (h *Hub) sweepOnce(now time.Time) int {
	h.mu.RLock()
	snapshot := make(map[string]*Room, len(h.rooms))
	for k, r := range h.rooms {
		snapshot[k] = r
	}
	h.mu.RUnlock()

	n := 0
	for k, r := range snapshot {
		if r.tryEvictIdle(now) {
			h.remove(k, r)
			n++
		}
	}
	return n
}
