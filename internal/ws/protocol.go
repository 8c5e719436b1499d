package ws

import "encoding/json"

// 流上交换的消息统一为带 type 判别字段的 JSON 信封。
const (
	TypeJoined           = "joined"
	TypeError            = "error"
	TypeSendRelay        = "send-relay"
	TypeNewRelay         = "new-relay"
	TypeRead             = "read"
	TypeReadAck          = "read-ack"
	TypeSessionDestroyed = "session-destroyed"
)

// error 事件携带的错误码。
const (
	errNotFoundOrExpired = "session_not_found_or_expired"
	errPayloadTooLarge   = "file_too_large_server_limit"
	errInternal          = "internal_error"
)

// inbound 只解出路由需要的字段，payload 对服务端保持不透明。
type inbound struct {
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	FileLimitKB int             `json:"file_limit_kb,omitempty"`
}

// filePayload 仅用于体积检查：kind 与密文长度，其余一概不看。
type filePayload struct {
	Kind string `json:"kind"`
	Data struct {
		Cipher string `json:"cipher"`
	} `json:"data"`
}

type joinedEvent struct {
	Type      string `json:"type"`
	SingleUse bool   `json:"singleUse"`
	ExpiresAt int64  `json:"expiresAt"`
}

type errorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type relayEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	TS      int64           `json:"ts"`
}

type readAckEvent struct {
	Type string `json:"type"`
	By   string `json:"by"`
	At   int64  `json:"at"`
}

type destroyedEvent struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}
