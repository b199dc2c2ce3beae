package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pixelroom/logging"
	"pixelroom/protocol"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ID string

	ws   *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		ID:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, 64),
		done: make(chan struct{}),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃），返回是否入队
func (c *ClientConn) Enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		// 为了实时性，丢弃（防止阻塞频道循环）
		return false
	}
}

// Send 编码信封后入队
func (c *ClientConn) Send(env protocol.Envelope) bool {
	b, err := json.Marshal(env)
	if err != nil {
		return false
	}
	return c.Enqueue(b)
}

// Close 关闭底层连接；send 通道不关闭，写协程通过 done 退出
func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期 ping
func (c *ClientConn) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端信封：订阅、退订、广播
func (c *ClientConn) readPump(m *ChannelManager) {
	joined := make(map[string]*Channel)
	defer func() {
		// 读泵退出时，离开所有已加入的频道
		for _, ch := range joined {
			ch.Leave(c.ID)
		}
		c.Close()
	}()
	c.ws.SetReadLimit(1 << 20) // 1MB
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var env protocol.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			c.Send(protocol.Envelope{Type: protocol.TypeError, Error: "invalid json"})
			continue
		}
		if env.Channel == "" {
			c.Send(protocol.Envelope{Type: protocol.TypeError, Error: "missing channel"})
			continue
		}

		switch env.Type {
		case protocol.TypeSubscribe:
			ch := m.GetOrCreateChannel(env.Channel)
			joined[env.Channel] = ch
			ch.Join(c, env.Self)
		case protocol.TypeUnsubscribe:
			if ch, ok := joined[env.Channel]; ok {
				ch.Leave(c.ID)
				delete(joined, env.Channel)
			}
		case protocol.TypeBroadcast:
			ch, ok := joined[env.Channel]
			if !ok {
				c.Send(protocol.Envelope{Type: protocol.TypeError, Channel: env.Channel, Error: "not subscribed"})
				continue
			}
			if env.Event == "" {
				continue
			}
			ch.Publish(c.ID, env)
		default:
			c.Send(protocol.Envelope{Type: protocol.TypeError, Error: "unknown type " + env.Type})
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源，访问控制交给 apikey
		return true
	},
}

// HandleWS 使用全局频道管理器的 WebSocket 接入
func HandleWS(w http.ResponseWriter, r *http.Request) {
	NewWSHandler(GetChannelManager())(w, r)
}

// NewWSHandler WebSocket 接入：/realtime
func NewWSHandler(m *ChannelManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Log.Warnf("upgrade error: %v", err)
			return
		}
		client := NewClientConn(ws)
		logging.Log.Debugf("realtime connection %s from %s", client.ID, r.RemoteAddr)

		go client.writePump()
		go client.readPump(m)
	}
}
