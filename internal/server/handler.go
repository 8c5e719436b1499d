package server

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/vasquezandres/clip/internal/config"
	"github.com/vasquezandres/clip/internal/key"
	"github.com/vasquezandres/clip/internal/ws"
)

// Handler 聚合会话相关的 HTTP handler，只是前门：所有真正的状态
// 变更都发生在 key 对应的 actor 里。
type Handler struct {
	hub *ws.Hub
	cfg config.Config
}

func NewHandler(hub *ws.Hub, cfg config.Config) *Handler {
	return &Handler{hub: hub, cfg: cfg}
}

// CreateSession 处理创建会话请求。customKey 校验不通过时退回随机
// 生成，而不是悄悄修补调用方的输入。
func (h *Handler) CreateSession(c *gin.Context) {
	var req struct {
		SingleUse  bool   `json:"singleUse"`
		TTLSeconds int    `json:"ttlSeconds"`
		CustomKey  string `json:"customKey"`
	}
	// body 可以为空，全部字段走默认值
	_ = c.ShouldBindJSON(&req)

	k, ok := key.Normalize(req.CustomKey)
	if !ok {
		k = key.Generate(key.Length)
	}
	expiresAt, err := h.hub.Create(k, req.SingleUse, req.TTLSeconds)
	if err != nil {
		if errors.Is(err, ws.ErrKeyInUse) {
			c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "key_in_use"})
			return
		}
		log.Error().Err(err).Str("key", k).Msg("create session")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "create_failed"})
		return
	}
	joinURL := requestOrigin(c) + "/join.html?key=" + url.QueryEscape(k)
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"key":       k,
		"joinUrl":   joinURL,
		"expiresAt": expiresAt,
		"singleUse": req.SingleUse,
	})
}

// SessionStatus 处理状态查询。过期但还没被回收的记录同样报 404，
// 绝不向外泄露过期会话的细节。
func (h *Handler) SessionStatus(c *gin.Context) {
	k, ok := key.Normalize(c.Param("key"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid_key"})
		return
	}
	meta, err := h.hub.Status(k)
	if err != nil {
		if errors.Is(err, ws.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "not_found_or_expired"})
			return
		}
		log.Error().Err(err).Str("key", k).Msg("session status")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "status_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"singleUse": meta.SingleUse,
		"expiresAt": meta.ExpiresAt,
		"online":    h.hub.Online(k),
	})
}

func requestOrigin(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
