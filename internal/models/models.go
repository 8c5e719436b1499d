package models

import "time"

// Session 是每个房间唯一的持久化记录。消息本体只做转发不落库，
// 因此这里只有"最后一次写入"的会话元数据。ExpiresAt 为 Unix 毫秒。
type Session struct {
	Key       string `gorm:"primaryKey;size:16"`
	SingleUse bool   `gorm:"not null"`
	ExpiresAt int64  `gorm:"index;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
