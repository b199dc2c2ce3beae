package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pixelroom/presence"
	"pixelroom/protocol"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// ErrSendQueueFull 发送队列已满，广播被丢弃（尽力而为）
var ErrSendQueueFull = errors.New("send queue full")

// ErrClosed 订阅已释放
var ErrClosed = errors.New("subscription closed")

// Realtime 实时频道客户端，实现 presence.Channel
type Realtime struct {
	url    string
	apiKey string
	dialer *websocket.Dialer
	log    *zap.SugaredLogger
}

var _ presence.Channel = (*Realtime)(nil)

// NewRealtime baseURL 为 http(s)://host:port，自动换成 ws(s)://host:port/realtime
func NewRealtime(baseURL, apiKey string, log *zap.SugaredLogger) *Realtime {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Realtime{
		url:    u + "/realtime",
		apiKey: apiKey,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:    log,
	}
}

// Subscribe 建立连接并订阅频道（不回显自己），收到 subscribed 确认后返回
func (rt *Realtime) Subscribe(ctx context.Context, name string) (presence.Subscription, error) {
	header := http.Header{}
	if rt.apiKey != "" {
		header.Set("apikey", rt.apiKey)
	}
	conn, _, err := rt.dialer.DialContext(ctx, rt.url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rt.url, err)
	}

	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(protocol.Envelope{Type: protocol.TypeSubscribe, Channel: name}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("subscribe %s: %w", name, err)
	}
	_ = conn.SetReadDeadline(deadline)
	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("await subscribed %s: %w", name, err)
		}
		if env.Type == protocol.TypeError {
			_ = conn.Close()
			return nil, fmt.Errorf("subscribe %s: %s", name, env.Error)
		}
		if env.Type == protocol.TypeSubscribed && env.Channel == name {
			break
		}
	}

	sub := &subscription{
		channel: name,
		conn:    conn,
		log:     rt.log,
		send:    make(chan []byte, 64),
		events:  make(chan presence.Message, 256),
		done:    make(chan struct{}),
	}
	go sub.writePump()
	go sub.readPump()
	return sub, nil
}

// subscription 一个频道的一条连接：读协程投递事件，写协程发送广播
type subscription struct {
	channel string
	conn    *websocket.Conn
	log     *zap.SugaredLogger

	send   chan []byte
	events chan presence.Message

	done      chan struct{}
	closeOnce sync.Once
}

func (s *subscription) Events() <-chan presence.Message { return s.events }

// Send 入队一条广播；不阻塞调用方（事件循环）
func (s *subscription) Send(_ context.Context, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	b, err := json.Marshal(protocol.Envelope{
		Type:    protocol.TypeBroadcast,
		Channel: s.channel,
		Event:   event,
		Payload: raw,
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.send <- b:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close 退订并断开；写协程负责发送 unsubscribe 与关闭帧
func (s *subscription) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *subscription) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.log.Warnf("realtime write: %v", err)
				return
			}
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			// 关闭前先写完已入队的广播（登出时的 player_leave 就在其中）
			s.drain()
			_ = s.conn.WriteJSON(protocol.Envelope{Type: protocol.TypeUnsubscribe, Channel: s.channel})
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
			return
		}
	}
}

// drain 非阻塞地写出 send 中剩余的消息
func (s *subscription) drain() {
	for {
		select {
		case msg := <-s.send:
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.log.Warnf("realtime write on close: %v", err)
				return
			}
		default:
			return
		}
	}
}

// readPump 把广播转换为 presence.Message；连接断开时关闭 events
func (s *subscription) readPump() {
	defer close(s.events)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error { return s.conn.SetReadDeadline(time.Now().Add(pongWait)) })
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.log.Warnf("realtime read: %v", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.log.Debugf("realtime: drop invalid json")
			continue
		}
		switch env.Type {
		case protocol.TypeBroadcast:
			select {
			case s.events <- presence.Message{Event: env.Event, Payload: env.Payload}:
			default:
				s.log.Warnf("realtime: event queue full, dropping %s", env.Event)
			}
		case protocol.TypeError:
			s.log.Warnf("realtime error: %s", env.Error)
		}
	}
}
