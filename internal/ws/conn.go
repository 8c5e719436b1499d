package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/vasquezandres/clip/internal/key"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	// 服务端文件上限 200KB 经 base64 放大后约 274KB，1MB 留足余量。
	maxMsgSize = 1 << 20
)

// Conn 是对 *websocket.Conn 的最小抽象，便于测试替换传输层。
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Client 是挂在某个 Room 上的一条活跃连接，只存在于内存中，
// 生命周期由接纳它的 actor 实例独占管理。
type Client struct {
	id   string
	conn Conn
	send chan []byte
	once sync.Once
}

func newClient(id string, conn Conn) *Client {
	return &Client{id: id, conn: conn, send: make(chan []byte, 256)}
}

// trySend 非阻塞入队；队列满视为投递失败，由调用方决定怎么处理。
func (c *Client) trySend(b []byte) bool {
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// shutdown 关闭发送队列。已入队的事件仍会被 writePump 刷出后才断开。
func (c *Client) shutdown() {
	c.once.Do(func() { close(c.send) })
}

func (c *Client) readPump(r *Room) {
	defer func() {
		r.Leave(c.id)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		r.HandleMessage(c.id, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case b, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve 校验 key、完成 websocket 升级并把连接交给对应的 actor，
// 阻塞到连接结束。key 格式不对直接 400，不走升级。
func Serve(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		k, ok := key.Normalize(c.Query("key"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid key"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		hub.Join(k, conn)
	}
}
