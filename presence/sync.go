package presence

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"pixelroom/protocol"
)

const (
	// BroadcastInterval 两次出站广播之间的最小间隔
	BroadcastInterval = 100 * time.Millisecond

	storeWriteTimeout = 5 * time.Second
)

// Synchronizer 维护本地视图，合并入站广播，节流出站广播
type Synchronizer struct {
	view  *View
	field Field
	store RowStore
	pub   Publisher
	log   *zap.SugaredLogger

	local    PlayerState
	hasLocal bool

	interval time.Duration
	now      func() time.Time
	lastSent time.Time
	pending  bool

	// 进行中的存储写入（发出即不管，只用于关闭时等待）
	writes sync.WaitGroup
}

func NewSynchronizer(field Field, st RowStore, log *zap.SugaredLogger, now func() time.Time) *Synchronizer {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Synchronizer{
		view:     NewView(),
		field:    field,
		store:    st,
		log:      log,
		interval: BroadcastInterval,
		now:      now,
	}
}

// Attach 绑定出站通道；nil 表示无频道（只写存储）
func (s *Synchronizer) Attach(pub Publisher) { s.pub = pub }

// Players 供渲染使用的视图快照
func (s *Synchronizer) Players() []PlayerState { return s.view.Players() }

// Local 本地玩家
func (s *Synchronizer) Local() (PlayerState, bool) { return s.local, s.hasLocal }

// SetLocal 设置本地玩家并写入视图，不广播
func (s *Synchronizer) SetLocal(p PlayerState) {
	p.X, p.Y = s.field.Clamp(p.X, p.Y)
	s.local = p
	s.hasLocal = true
	s.pending = false
	s.view.Put(p)
}

func (s *Synchronizer) nextSeq(prev int64) int64 {
	return nextSeq(prev, s.now())
}

// Apply 合并一条入站广播
func (s *Synchronizer) Apply(msg Message) {
	switch msg.Event {
	case protocol.EventPlayerMove:
		var p PlayerState
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.ID == "" {
			s.log.Warnf("drop malformed %s payload: %s", msg.Event, string(msg.Payload))
			return
		}
		s.ApplyMove(p)
	case protocol.EventPlayerLeave:
		var lp protocol.LeavePayload
		if err := json.Unmarshal(msg.Payload, &lp); err != nil || lp.ID == "" {
			s.log.Warnf("drop malformed %s payload: %s", msg.Event, string(msg.Payload))
			return
		}
		s.ApplyLeave(lp.ID)
	default:
		s.log.Debugf("ignore event %q", msg.Event)
	}
}

// ApplyMove 插入或替换对方的记录；本地玩家自己的回显一律忽略
func (s *Synchronizer) ApplyMove(p PlayerState) bool {
	if s.hasLocal && p.ID == s.local.ID {
		return false
	}
	p.X, p.Y = s.field.Clamp(p.X, p.Y)
	return s.view.Merge(p)
}

// ApplyLeave 删除对应 id；不存在时无操作
func (s *Synchronizer) ApplyLeave(id string) bool {
	return s.view.Remove(id)
}

// MergeSnapshot 用存储全量快照补种视图，同样受 seq 守卫，
// 慢到的快照不会覆盖已经由广播更新过的记录
func (s *Synchronizer) MergeSnapshot(rows []PlayerState) {
	for _, p := range rows {
		s.ApplyMove(p)
	}
}

// MoveLocal 提交本地新位置：立即更新视图，广播受节流控制
func (s *Synchronizer) MoveLocal(x, y int) {
	if !s.hasLocal {
		return
	}
	x, y = s.field.Clamp(x, y)
	s.local.X, s.local.Y = x, y
	s.local.Seq = s.nextSeq(s.local.Seq)
	s.view.Put(s.local)
	s.pending = true
	s.Flush()
}

// Flush 窗口已过且有待发状态时，发送最新状态（中间位置不排队）。
// 空闲后的第一次移动走前沿：MoveLocal 内直接发出；
// 窗口内随后的移动走后沿：由事件循环的 ticker 调用 Flush，在窗口结束时发出最后位置。
// 所以从空闲开始，一个窗口内的 N 次移动最多产生两次广播，任意 100ms 内至多一次
func (s *Synchronizer) Flush() {
	if !s.pending {
		return
	}
	now := s.now()
	if !s.lastSent.IsZero() && now.Sub(s.lastSent) < s.interval {
		return
	}
	s.pending = false
	s.lastSent = now
	p := s.local
	if s.pub != nil {
		if err := s.pub.Send(context.Background(), protocol.EventPlayerMove, p); err != nil {
			s.log.Warnf("broadcast move: %v", err)
		}
	}
	s.persist(p)
}

// persist 发出即不管的存储写入：失败只记录，不重试，不上报
func (s *Synchronizer) persist(p PlayerState) {
	if s.store == nil {
		return
	}
	x, y := p.X, p.Y
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
		defer cancel()
		err := s.store.Update(ctx, p.ID, Patch{X: &x, Y: &y, Seq: p.Seq})
		switch {
		case err == nil:
		case errors.Is(err, ErrStale):
			s.log.Debugf("store update %s seq=%d superseded", p.ID, p.Seq)
		default:
			s.log.Errorf("Error updating player in DB: %v", err)
		}
	}()
}

// Wait 等待进行中的存储写入结束
func (s *Synchronizer) Wait() { s.writes.Wait() }

// Reset 清空视图与本地玩家（登出）
func (s *Synchronizer) Reset() {
	s.view.Reset()
	s.local = PlayerState{}
	s.hasLocal = false
	s.pending = false
	s.pub = nil
}
