package server

import (
	"sync/atomic"
)

// ChannelMetrics 记录频道运行期的关键指标（用于监控与调试）
type ChannelMetrics struct {
	Subscribers       int64 // 当前订阅者数
	Broadcasts        int64 // 处理的广播条数
	Delivered         int64 // 成功入队的投递数
	Dropped           int64 // 因订阅者发送队列满被丢弃的投递数
	ChanFullDiscarded int64 // 因频道入站通道满被丢弃的广播数
}

func (m *ChannelMetrics) IncSubscribers(d int64) { atomic.AddInt64(&m.Subscribers, d) }
func (m *ChannelMetrics) IncBroadcasts() { atomic.AddInt64(&m.Broadcasts, 1) }
func (m *ChannelMetrics) IncDelivered() { atomic.AddInt64(&m.Delivered, 1) }
func (m *ChannelMetrics) IncDropped() { atomic.AddInt64(&m.Dropped, 1) }
func (m *ChannelMetrics) IncChanFullDiscarded() { atomic.AddInt64(&m.ChanFullDiscarded, 1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *ChannelMetrics) Snapshot() map[string]any {
	return map[string]any{
		"subscribers":         atomic.LoadInt64(&m.Subscribers),
		"broadcasts":          atomic.LoadInt64(&m.Broadcasts),
		"delivered":           atomic.LoadInt64(&m.Delivered),
		"dropped":             atomic.LoadInt64(&m.Dropped),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
	}
}
