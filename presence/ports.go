package presence

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound 存储中没有该玩家
	ErrNotFound = errors.New("player not found")
	// ErrStale 存储拒绝了 seq 不够新的写入
	ErrStale = errors.New("stale player update")
	// ErrAlreadyExists 插入时该 id 已有记录
	ErrAlreadyExists = errors.New("player already exists")
	// ErrNameRequired 登录时昵称为空
	ErrNameRequired = errors.New("nickname is required")
)

// Patch 按 id 的部分更新，nil 字段不修改
type Patch struct {
	X    *int    `json:"x,omitempty"`
	Y    *int    `json:"y,omitempty"`
	Name *string `json:"name,omitempty"`
	Seq  int64   `json:"seq"`
}

// RowStore 远端行存储
type RowStore interface {
	Get(ctx context.Context, id string) (PlayerState, error)
	List(ctx context.Context) ([]PlayerState, error)
	Insert(ctx context.Context, p PlayerState) error
	Update(ctx context.Context, id string, patch Patch) error
	Delete(ctx context.Context, id string) error
}

// Message 频道上收到的一条广播
type Message struct {
	Event   string
	Payload json.RawMessage
}

// Publisher 发送广播
type Publisher interface {
	Send(ctx context.Context, event string, payload any) error
}

// Subscription 一次频道订阅，登录时获取，登出时释放
type Subscription interface {
	Publisher
	// Events 收到的广播；连接断开后被关闭
	Events() <-chan Message
	Close() error
}

// Channel 实时频道客户端。Subscribe 在服务端确认订阅后才返回，且不回显自己的广播
type Channel interface {
	Subscribe(ctx context.Context, name string) (Subscription, error)
}

// Identity 本地持久化的身份
type Identity struct {
	ID   string
	Name string
}

// Profile 本地键值存储：启动时读取，登录时写入，登出时清除
type Profile interface {
	Load() (Identity, error)
	Save(Identity) error
	Clear() error
}
