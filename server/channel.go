package server

import (
	"encoding/json"

	"pixelroom/logging"
	"pixelroom/protocol"
)

// subscriber 频道内的一个订阅者
type subscriber struct {
	conn *ClientConn
	self bool // 是否回显自己发出的广播
}

type joinRequest struct {
	conn *ClientConn
	self bool
}

type leaveRequest struct {
	connID string
}

// publishRequest from 为空表示服务端发起（如管理接口踢人），所有订阅者都会收到
type publishRequest struct {
	from string
	env  protocol.Envelope
}

// Channel 命名广播频道：订阅者集合只由事件循环协程修改，无需加锁
type Channel struct {
	Name string

	subs        map[string]*subscriber
	joinChan    chan joinRequest
	leaveChan   chan leaveRequest
	publishChan chan publishRequest

	metrics *ChannelMetrics
	started bool
}

// NewChannel 创建频道，初始化数据结构
func NewChannel(name string) *Channel {
	return &Channel{
		Name:        name,
		subs:        make(map[string]*subscriber),
		joinChan:    make(chan joinRequest, 64),
		leaveChan:   make(chan leaveRequest, 64),
		publishChan: make(chan publishRequest, 256), // 足够缓冲，避免网络读阻塞
		metrics:     &ChannelMetrics{},
	}
}

// Metrics 频道运行指标
func (c *Channel) Metrics() *ChannelMetrics { return c.metrics }

// Join 请求加入频道；确认（subscribed）由事件循环异步回发
func (c *Channel) Join(conn *ClientConn, self bool) {
	c.joinChan <- joinRequest{conn: conn, self: self}
}

// Leave 请求移出订阅者（阻塞写入，保证移除一定生效）
func (c *Channel) Leave(connID string) {
	c.leaveChan <- leaveRequest{connID: connID}
}

// Publish 入站广播：不阻塞，拥塞时丢弃（广播本就是尽力而为）
func (c *Channel) Publish(from string, env protocol.Envelope) {
	env.Type = protocol.TypeBroadcast
	env.Channel = c.Name
	select {
	case c.publishChan <- publishRequest{from: from, env: env}:
	default:
		c.metrics.IncChanFullDiscarded()
	}
}

func (c *Channel) join(req joinRequest) {
	if _, ok := c.subs[req.conn.ID]; !ok {
		c.metrics.IncSubscribers(1)
	}
	c.subs[req.conn.ID] = &subscriber{conn: req.conn, self: req.self}
	req.conn.Send(protocol.Envelope{Type: protocol.TypeSubscribed, Channel: c.Name})
	logging.Log.Infof("channel %s: %s subscribed (self=%v)", c.Name, req.conn.ID, req.self)
}

func (c *Channel) leave(req leaveRequest) {
	if _, ok := c.subs[req.connID]; ok {
		delete(c.subs, req.connID)
		c.metrics.IncSubscribers(-1)
		logging.Log.Infof("channel %s: %s unsubscribed", c.Name, req.connID)
	}
}

// fanout 将广播发给除发送者以外的所有订阅者（发送者 self=true 时也回显）
func (c *Channel) fanout(req publishRequest) {
	b, err := json.Marshal(req.env)
	if err != nil {
		logging.Log.Warnf("channel %s: marshal broadcast: %v", c.Name, err)
		return
	}
	c.metrics.IncBroadcasts()
	for id, sub := range c.subs {
		if id == req.from && !sub.self {
			continue
		}
		if sub.conn.Enqueue(b) {
			c.metrics.IncDelivered()
		} else {
			c.metrics.IncDropped()
		}
	}
}
