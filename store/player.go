// Package store 玩家行存储：按 id 读写 players 表，是玩家数据的持久真相
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists 主键冲突
	ErrAlreadyExists = errors.New("record already exists")
	// ErrStale 写入的 seq 不大于已存储的 seq，被拒绝
	ErrStale = errors.New("stale sequence")
)

// Player players 表中的一行，JSON 形状与客户端 PlayerState 一致
type Player struct {
	ID    string `json:"id"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
	Name  string `json:"name"`
	Seq   int64  `json:"seq"`
}

// Patch 按 id 的部分更新；nil 字段保持原值。Seq 必须大于已存储的 seq
type Patch struct {
	X    *int    `json:"x,omitempty"`
	Y    *int    `json:"y,omitempty"`
	Name *string `json:"name,omitempty"`
	Seq  int64   `json:"seq"`
}

// PlayerStore 行存储契约，HTTP 层只依赖它
type PlayerStore interface {
	Get(ctx context.Context, id string) (Player, error)
	List(ctx context.Context) ([]Player, error)
	Insert(ctx context.Context, p Player) error
	Update(ctx context.Context, id string, patch Patch) error
	Delete(ctx context.Context, id string) error
}
