package server

import (
	"sort"
	"sync"
)

// ChannelManager 管理多个频道的生命周期
type ChannelManager struct {
	mu       sync.RWMutex
	channels map[string]*Channel
}

var (
	defaultManager *ChannelManager
	once           sync.Once
)

// GetChannelManager 单例频道管理器
func GetChannelManager() *ChannelManager {
	once.Do(func() {
		defaultManager = NewChannelManager()
	})
	return defaultManager
}

// NewChannelManager 独立的管理器，测试里用来隔离状态
func NewChannelManager() *ChannelManager {
	return &ChannelManager{channels: make(map[string]*Channel)}
}

// GetOrCreateChannel 获取或创建频道，并确保事件循环已启动
func (m *ChannelManager) GetOrCreateChannel(name string) *Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.channels[name]
	if !ok {
		c = NewChannel(name)
		m.channels[name] = c
		c.Start()
	}
	return c
}

// Lookup 只查找，不创建
func (m *ChannelManager) Lookup(name string) (*Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.channels[name]
	return c, ok
}

// Names 当前所有频道名（排序）
func (m *ChannelManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
