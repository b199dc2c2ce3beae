// Package profile 本地持久化身份（玩家 id 与昵称），跨进程保留
package profile

import (
	"fmt"
	"strings"

	"github.com/quasilyte/gdata"

	"pixelroom/presence"
)

const (
	itemPlayerID   = "player_id"
	itemPlayerName = "player_name"
)

// itemStore gdata.Manager 中用到的部分，便于测试替换
type itemStore interface {
	LoadItem(itemKey string) ([]byte, error)
	SaveItem(itemKey string, data []byte) error
	ItemExists(itemKey string) bool
	DeleteItem(itemKey string) error
}

// Store 基于 gdata 的 presence.Profile 实现
type Store struct {
	items itemStore
}

var _ presence.Profile = (*Store)(nil)

// Open 打开应用的本地数据目录
func Open(appName string) (*Store, error) {
	m, err := gdata.Open(gdata.Config{
		AppName: appName,
	})
	if err != nil {
		return nil, fmt.Errorf("open profile: %w", err)
	}
	return &Store{items: m}, nil
}

// Load 读取身份；没有保存过时返回零值
func (s *Store) Load() (presence.Identity, error) {
	id, err := s.load(itemPlayerID)
	if err != nil {
		return presence.Identity{}, err
	}
	name, err := s.load(itemPlayerName)
	if err != nil {
		return presence.Identity{}, err
	}
	return presence.Identity{ID: id, Name: name}, nil
}

// Save 写入身份
func (s *Store) Save(ident presence.Identity) error {
	if err := s.items.SaveItem(itemPlayerID, []byte(ident.ID)); err != nil {
		return fmt.Errorf("save %s: %w", itemPlayerID, err)
	}
	if err := s.items.SaveItem(itemPlayerName, []byte(ident.Name)); err != nil {
		return fmt.Errorf("save %s: %w", itemPlayerName, err)
	}
	return nil
}

// Clear 删除身份条目；条目不存在时无操作
func (s *Store) Clear() error {
	for _, key := range []string{itemPlayerID, itemPlayerName} {
		if !s.items.ItemExists(key) {
			continue
		}
		if err := s.items.DeleteItem(key); err != nil {
			return fmt.Errorf("clear %s: %w", key, err)
		}
	}
	return nil
}

func (s *Store) load(key string) (string, error) {
	data, err := s.items.LoadItem(key)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", key, err)
	}
	return strings.TrimSpace(string(data)), nil
}
