package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/vasquezandres/clip/internal/config"
	"github.com/vasquezandres/clip/internal/key"
	"github.com/vasquezandres/clip/internal/metrics"
	"github.com/vasquezandres/clip/internal/store"
)

var (
	// ErrKeyInUse 表示对一个仍存活的会话重复 create。
	ErrKeyInUse = errors.New("key in use")
	// ErrSessionNotFound 表示会话不存在或已过期，属于正常结果而非异常。
	ErrSessionNotFound = errors.New("session not found or expired")
	// errEvicted 表示实例已被回收，调用方需要重新定位 actor。
	errEvicted = errors.New("room instance evicted")
)

// Room 是单个房间 key 的 actor：会话元数据和连接集只归它所有，
// 全部操作在 mu 下逐条执行，持久化读写也在锁内完成，
// 因此同一个 key 不存在交错的状态变更。不同 key 的 Room 完全独立。
type Room struct {
	key   string
	store store.SessionStore
	cfg   config.Config

	mu      sync.Mutex
	loaded  bool
	meta    *store.Meta
	conns   map[string]*Client
	evicted bool
}

func newRoom(k string, st store.SessionStore, cfg config.Config) *Room {
	return &Room{key: k, store: st, cfg: cfg, conns: make(map[string]*Client)}
}

// loadLocked 惰性读取持久化元数据，之后以内存缓存为准。
func (r *Room) loadLocked() error {
	if r.loaded {
		return nil
	}
	m, err := r.store.Get(r.key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.meta = nil
			r.loaded = true
			return nil
		}
		return err
	}
	r.meta = &m
	r.loaded = true
	return nil
}

// activeLocked 判断会话在 now 时刻是否存活；过期记录即使还没被
// 存储层回收也一律视为不存在。
func (r *Room) activeLocked(now time.Time) bool {
	return r.meta != nil && !r.meta.Expired(now)
}

// Create 创建会话。key 仍被占用时返回 ErrKeyInUse；TTL 会被压进
// 策略区间。持久化失败时操作整体失败，内存状态不变。
func (r *Room) Create(singleUse bool, ttlSeconds int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.evicted {
		return 0, errEvicted
	}
	if err := r.loadLocked(); err != nil {
		return 0, err
	}
	now := time.Now()
	if r.activeLocked(now) {
		return 0, ErrKeyInUse
	}
	ttl := r.cfg.ClampTTL(ttlSeconds)
	meta := store.Meta{SingleUse: singleUse, ExpiresAt: now.Add(time.Duration(ttl) * time.Second).UnixMilli()}
	if err := r.store.Put(r.key, meta); err != nil {
		return 0, err
	}
	r.meta = &meta
	metrics.SessionsCreated.Inc()
	log.Info().Str("key", r.key).Bool("single_use", singleUse).Int64("expires_at", meta.ExpiresAt).Msg("session created")
	return meta.ExpiresAt, nil
}

// Status 返回会话元数据，无副作用，可任意重复调用。
func (r *Room) Status() (store.Meta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.evicted {
		return store.Meta{}, errEvicted
	}
	if err := r.loadLocked(); err != nil {
		return store.Meta{}, err
	}
	if !r.activeLocked(time.Now()) {
		return store.Meta{}, ErrSessionNotFound
	}
	return *r.meta, nil
}

// Join 接入一条已升级的连接并阻塞到连接结束。会话不存活时发送
// 终止事件后直接关闭，不注册连接。返回 false 表示实例已被回收，
// 调用方应重新定位 actor 再试。
func (r *Room) Join(conn Conn) bool {
	c := newClient(key.NewConnID(), conn)
	r.mu.Lock()
	if r.evicted {
		r.mu.Unlock()
		return false
	}
	if err := r.loadLocked(); err != nil {
		r.mu.Unlock()
		log.Error().Err(err).Str("key", r.key).Msg("join load meta")
		r.rejectConn(conn, errInternal)
		return true
	}
	if !r.activeLocked(time.Now()) {
		r.mu.Unlock()
		r.rejectConn(conn, errNotFoundOrExpired)
		return true
	}
	r.conns[c.id] = c
	metrics.WsConnections.Inc()
	// joined 先入队，保证对端看到的第一帧就是会话状态
	r.pushLocked(c, joinedEvent{Type: TypeJoined, SingleUse: r.meta.SingleUse, ExpiresAt: r.meta.ExpiresAt})
	r.mu.Unlock()

	log.Info().Str("key", r.key).Str("conn", c.id).Msg("peer joined")
	go c.writePump()
	c.readPump(r)
	return true
}

// rejectConn 向未注册的连接发一条终止错误帧后直接关闭。
func (r *Room) rejectConn(conn Conn, code string) {
	b, _ := json.Marshal(errorEvent{Type: TypeError, Error: code})
	_ = conn.WriteMessage(websocket.TextMessage, b)
	_ = conn.Close()
}

// Leave 注销一条连接。对端断开是连接集收缩的唯一常规途径。
func (r *Room) Leave(id string) {
	r.mu.Lock()
	if c, ok := r.conns[id]; ok {
		delete(r.conns, id)
		c.shutdown()
		metrics.WsConnections.Dec()
		log.Debug().Str("key", r.key).Str("conn", id).Msg("peer left")
	}
	r.mu.Unlock()
}

// HandleMessage 处理一条来自已入会连接的入站消息。
// 解析失败或类型未知的消息静默丢弃，连接保持不动。
func (r *Room) HandleMessage(senderID string, data []byte) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		log.Debug().Str("key", r.key).Msg("drop malformed message")
		return
	}
	switch in.Type {
	case TypeSendRelay:
		r.relay(senderID, in)
	case TypeRead:
		r.consumeRead(senderID)
	default:
		// 未知类型不算协议错误，为前向兼容直接忽略
	}
}

func (r *Room) relay(senderID string, in inbound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if err := r.loadLocked(); err != nil {
		log.Error().Err(err).Str("key", r.key).Msg("relay load meta")
		r.sendToLocked(senderID, errorEvent{Type: TypeError, Error: errInternal})
		return
	}
	if !r.activeLocked(now) {
		r.expireLocked(senderID)
		return
	}
	// 生效上限取服务端与客户端声明的较小值：客户端只能收紧不能放宽
	ceiling := r.cfg.MaxFileKB
	if in.FileLimitKB > 0 && in.FileLimitKB < ceiling {
		ceiling = in.FileLimitKB
	}
	var fp filePayload
	if len(in.Payload) > 0 && json.Unmarshal(in.Payload, &fp) == nil && fp.Kind == "file" {
		// base64 膨胀系数 4/3，按编码长度估算解码后的字节数
		approx := len(fp.Data.Cipher) * 3 / 4
		if approx > ceiling*1024 {
			metrics.RejectedTooLarge.Inc()
			r.sendToLocked(senderID, errorEvent{Type: TypeError, Error: errPayloadTooLarge})
			return
		}
	}
	r.broadcastLocked(relayEvent{Type: TypeNewRelay, Payload: in.Payload, TS: now.UnixMilli()})
	metrics.RelayedTotal.Inc()
}

func (r *Room) consumeRead(senderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if err := r.loadLocked(); err != nil {
		log.Error().Err(err).Str("key", r.key).Msg("read load meta")
		r.sendToLocked(senderID, errorEvent{Type: TypeError, Error: errInternal})
		return
	}
	if !r.activeLocked(now) {
		r.expireLocked(senderID)
		return
	}
	if !r.meta.SingleUse {
		r.broadcastLocked(readAckEvent{Type: TypeReadAck, By: senderID, At: now.UnixMilli()})
		return
	}
	// 单次会话：先删持久化记录，删不掉就放弃销毁，避免内存与存储分叉
	if err := r.store.Delete(r.key); err != nil {
		log.Error().Err(err).Str("key", r.key).Msg("delete session meta")
		r.sendToLocked(senderID, errorEvent{Type: TypeError, Error: errInternal})
		return
	}
	r.broadcastLocked(destroyedEvent{Type: TypeSessionDestroyed, Reason: "single_use_read"})
	r.closeAllLocked()
	r.meta = nil
	r.evicted = true
	metrics.SessionsDestroyed.Inc()
	log.Info().Str("key", r.key).Msg("session destroyed by single-use read")
}

// expireLocked 在操作路径上观测到过期：通知触发方并解散实例。
func (r *Room) expireLocked(senderID string) {
	r.sendToLocked(senderID, errorEvent{Type: TypeError, Error: errNotFoundOrExpired})
	r.closeAllLocked()
	r.meta = nil
	r.evicted = true
	log.Debug().Str("key", r.key).Msg("session expired, instance torn down")
}

// broadcastLocked 尽力而为地向每条连接投递一次：单个对端失败只会
// 把它摘掉，既不重试也不向调用方报错。一致性保证只覆盖 actor
// 自身的状态，不覆盖对端送达。
func (r *Room) broadcastLocked(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("key", r.key).Msg("broadcast marshal")
		return
	}
	for id, c := range r.conns {
		if !c.trySend(b) {
			delete(r.conns, id)
			c.shutdown()
			metrics.WsConnections.Dec()
		}
	}
}

func (r *Room) sendToLocked(id string, v any) {
	if c, ok := r.conns[id]; ok {
		r.pushLocked(c, v)
	}
}

func (r *Room) pushLocked(c *Client, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("key", r.key).Msg("event marshal")
		return
	}
	if !c.trySend(b) {
		delete(r.conns, c.id)
		c.shutdown()
		metrics.WsConnections.Dec()
	}
}

func (r *Room) closeAllLocked() {
	for id, c := range r.conns {
		delete(r.conns, id)
		c.shutdown()
		metrics.WsConnections.Dec()
	}
}

// ConnCount 返回当前连接数，供状态接口与测试使用。
func (r *Room) ConnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// tryEvictIdle 在无连接且会话不存活时把实例标记为可回收。
func (r *Room) tryEvictIdle(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.evicted {
		return true
	}
	if len(r.conns) > 0 {
		return false
	}
	if r.loaded && r.activeLocked(now) {
		return false
	}
	r.evicted = true
	return true
}
