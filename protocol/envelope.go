// Package protocol 实时频道的 JSON 信封，后端与客户端共用
package protocol

import "encoding/json"

// 信封类型
const (
	TypeSubscribe   = "subscribe"
	TypeSubscribed  = "subscribed"
	TypeUnsubscribe = "unsubscribe"
	TypeBroadcast   = "broadcast"
	TypeError       = "error"
)

// 频道与事件名
const (
	ChannelGameRoom = "game_room"

	EventPlayerMove  = "player_move"
	EventPlayerLeave = "player_leave"
)

// Envelope 一条 WebSocket 文本消息
// 示例：{"type":"broadcast","channel":"game_room","event":"player_move","payload":{...}}
type Envelope struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	// 仅 subscribe 使用：是否接收自己发出的广播
	Self  bool   `json:"self,omitempty"`
	Error string `json:"error,omitempty"`
}

// LeavePayload player_leave 的最小载荷
type LeavePayload struct {
	ID string `json:"id"`
}
