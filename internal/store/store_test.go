package store

import (
	"errors"
	"testing"
	"time"

	"github.com/vasquezandres/clip/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// 内存库只存在于单个连接上，收紧连接池避免 gorm 拿到空库。
	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := gdb.AutoMigrate(&models.Session{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewGormStore(gdb)
}

func TestGormStore_PutGet(t *testing.T) {
	s := newTestStore(t)
	exp := time.Now().Add(15 * time.Minute).UnixMilli()

	if err := s.Put("ABCDEF", Meta{SingleUse: true, ExpiresAt: exp}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	meta, err := s.Get("ABCDEF")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !meta.SingleUse {
		t.Error("Get() SingleUse = false, want true")
	}
	if meta.ExpiresAt != exp {
		t.Errorf("Get() ExpiresAt = %d, want %d", meta.ExpiresAt, exp)
	}
}

func TestGormStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("NOSUCH")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestGormStore_GetExpired(t *testing.T) {
	s := newTestStore(t)
	// Already expired but not yet reaped
	if err := s.Put("ABCDEF", Meta{ExpiresAt: time.Now().Add(-time.Second).UnixMilli()}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	_, err := s.Get("ABCDEF")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() on expired record error = %v, want ErrNotFound", err)
	}
}

func TestGormStore_PutOverwrites(t *testing.T) {
	s := newTestStore(t)
	exp1 := time.Now().Add(time.Minute).UnixMilli()
	exp2 := time.Now().Add(time.Hour).UnixMilli()

	if err := s.Put("ABCDEF", Meta{SingleUse: true, ExpiresAt: exp1}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Put("ABCDEF", Meta{SingleUse: false, ExpiresAt: exp2}); err != nil {
		t.Fatalf("Put() overwrite error = %v", err)
	}

	meta, err := s.Get("ABCDEF")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if meta.SingleUse {
		t.Error("Get() SingleUse = true, want false after overwrite")
	}
	if meta.ExpiresAt != exp2 {
		t.Errorf("Get() ExpiresAt = %d, want %d", meta.ExpiresAt, exp2)
	}
}

func TestGormStore_Delete(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put("ABCDEF", Meta{ExpiresAt: time.Now().Add(time.Minute).UnixMilli()}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if err := s.Delete("ABCDEF"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get("ABCDEF"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}

	// Deleting an absent key is not an error
	if err := s.Delete("NOSUCH"); err != nil {
		t.Errorf("Delete() on missing key error = %v", err)
	}
}

func TestGormStore_Reap(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	if err := s.Put("STALE1", Meta{ExpiresAt: now.Add(-time.Minute).UnixMilli()}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Put("STALE2", Meta{ExpiresAt: now.Add(-time.Second).UnixMilli()}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Put("LIVE", Meta{ExpiresAt: now.Add(time.Hour).UnixMilli()}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	n, err := s.reap(now)
	if err != nil {
		t.Fatalf("reap() error = %v", err)
	}
	if n != 2 {
		t.Errorf("reap() removed %d rows, want 2", n)
	}
	if _, err := s.Get("LIVE"); err != nil {
		t.Errorf("Get() live session after reap error = %v", err)
	}
}

func TestMeta_Expired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		meta Meta
		want bool
	}{
		{"zero expiry", Meta{}, true},
		{"future", Meta{ExpiresAt: now.Add(time.Minute).UnixMilli()}, false},
		{"past", Meta{ExpiresAt: now.Add(-time.Minute).UnixMilli()}, true},
		{"exact boundary", Meta{ExpiresAt: now.UnixMilli()}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.meta.Expired(now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}
