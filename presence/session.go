package presence

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pixelroom/protocol"
)

// State 会话状态：只有未登录与已登录两种
type State int

const (
	LoggedOut State = iota
	LoggedIn
)

func (s State) String() string {
	if s == LoggedIn {
		return "logged-in"
	}
	return "logged-out"
}

// Deps 会话依赖；Channel 可以为空（缺少配置时的无网络状态）
type Deps struct {
	Store   RowStore
	Channel Channel
	Profile Profile
	Log     *zap.SugaredLogger

	Field Field // 零值使用 DefaultField
	Now   func() time.Time
	Rand  *rand.Rand
	NewID func() string
}

// Session 持有本地身份与频道订阅，所有存储读写都经过它
type Session struct {
	store   RowStore
	channel Channel
	profile Profile
	log     *zap.SugaredLogger
	field   Field
	rand    *rand.Rand
	newID   func() string

	sync       *Synchronizer
	controller *Controller

	state State
	sub   Subscription
}

func NewSession(d Deps) *Session {
	if d.Log == nil {
		d.Log = zap.NewNop().Sugar()
	}
	if d.Field == (Field{}) {
		d.Field = DefaultField
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Rand == nil {
		d.Rand = rand.New(rand.NewSource(d.Now().UnixNano()))
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	syncer := NewSynchronizer(d.Field, d.Store, d.Log, d.Now)
	return &Session{
		store:      d.Store,
		channel:    d.Channel,
		profile:    d.Profile,
		log:        d.Log,
		field:      d.Field,
		rand:       d.Rand,
		newID:      d.NewID,
		sync:       syncer,
		controller: NewController(d.Field, syncer),
	}
}

func (s *Session) State() State { return s.state }

// Sync 渲染层从这里读取视图
func (s *Session) Sync() *Synchronizer { return s.sync }

func (s *Session) Controller() *Controller { return s.controller }

// Local 当前本地玩家
func (s *Session) Local() (PlayerState, bool) {
	if s.state != LoggedIn {
		return PlayerState{}, false
	}
	return s.sync.Local()
}

// Events 当前订阅的入站广播；未订阅时返回 nil（select 中永远阻塞）
func (s *Session) Events() <-chan Message {
	if s.sub == nil {
		return nil
	}
	return s.sub.Events()
}

// Login 建立或复用本地身份，写入存储（已存在则只改昵称），订阅频道，
// 订阅确认后宣告自己，再拉取存储快照补种视图。
// 存储失败只记录日志；唯一返回的错误是昵称为空
func (s *Session) Login(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	if s.state == LoggedIn {
		s.release()
	}

	ident, err := s.profile.Load()
	if err != nil {
		s.log.Warnf("load profile: %v", err)
		ident = Identity{}
	}
	id := ident.ID
	if id == "" {
		id = s.newID()
	}

	player, err := s.store.Get(ctx, id)
	if err == nil {
		player = s.rename(ctx, player, name)
	} else {
		if !errors.Is(err, ErrNotFound) {
			s.log.Errorf("Error fetching player %s: %v", id, err)
		}
		player = s.newPlayer(id, name)
		if err := s.store.Insert(ctx, player); err != nil {
			s.log.Errorf("Error inserting new player: %v", err)
			// 记录其实存在（之前的读取是暂时失败）：沿用存储里的位置与颜色
			if errors.Is(err, ErrAlreadyExists) {
				if stored, gerr := s.store.Get(ctx, id); gerr == nil {
					player = s.rename(ctx, stored, name)
				}
			}
		}
	}

	if err := s.profile.Save(Identity{ID: id, Name: name}); err != nil {
		s.log.Warnf("save profile: %v", err)
	}
	s.enter(ctx, player)
	s.log.Infof("logged in as %s (%s)", name, id)
	return nil
}

// Restore 启动时恢复会话。存储里已没有该玩家（被外部删除）时丢弃本地身份，
// 不复活旧玩家。返回是否进入已登录状态
func (s *Session) Restore(ctx context.Context) bool {
	ident, err := s.profile.Load()
	if err != nil {
		s.log.Debugf("no session: %v", err)
		return false
	}
	if ident.ID == "" || ident.Name == "" {
		return false
	}

	player, err := s.store.Get(ctx, ident.ID)
	if errors.Is(err, ErrNotFound) {
		s.log.Infof("player %s no longer exists; discarding local identity", ident.ID)
		if err := s.profile.Clear(); err != nil {
			s.log.Warnf("clear profile: %v", err)
		}
		return false
	}
	if err != nil {
		s.log.Errorf("Error restoring player %s: %v", ident.ID, err)
		return false
	}

	// 存储的 seq 可能落后于之前广播过的 seq，重新取号保证宣告能覆盖对端视图
	player.Seq = s.sync.nextSeq(player.Seq)
	s.enter(ctx, player)
	s.log.Infof("session restored for %s (%s)", player.Name, player.ID)
	return true
}

// Logout 广播离开，删除存储记录，退订，清除本地身份
func (s *Session) Logout(ctx context.Context) {
	if s.state != LoggedIn {
		return
	}
	local, _ := s.sync.Local()
	if s.sub != nil {
		if err := s.sub.Send(ctx, protocol.EventPlayerLeave, local); err != nil {
			s.log.Warnf("broadcast leave: %v", err)
		}
	}
	// 先等移动写入落地，避免删除之后又被更新
	s.sync.Wait()
	if err := s.store.Delete(ctx, local.ID); err != nil {
		s.log.Errorf("Error deleting player: %v", err)
	}
	s.release()
	if err := s.profile.Clear(); err != nil {
		s.log.Warnf("clear profile: %v", err)
	}
	s.sync.Reset()
	s.state = LoggedOut
	s.log.Infof("logged out %s", local.ID)
}

// Close 释放订阅但保留身份与存储记录（进程退出）
func (s *Session) Close() {
	s.release()
	s.sync.Wait()
}

// HandleMessage 把订阅收到的广播交给同步器
func (s *Session) HandleMessage(msg Message) {
	s.sync.Apply(msg)
}

// ConnectionLost 订阅的事件通道被关闭后调用：放弃订阅，保持已登录
func (s *Session) ConnectionLost() {
	if s.sub == nil {
		return
	}
	s.log.Warn("realtime subscription lost")
	s.release()
}

func (s *Session) enter(ctx context.Context, player PlayerState) {
	s.sync.Reset()
	s.sync.SetLocal(player)
	s.state = LoggedIn
	s.subscribe(ctx)
	s.seedFromStore(ctx)
}

// subscribe 订阅确认后再宣告自己（复用 player_move）
func (s *Session) subscribe(ctx context.Context) {
	if s.channel == nil {
		s.log.Warn("no realtime channel configured; running without broadcasts")
		return
	}
	sub, err := s.channel.Subscribe(ctx, protocol.ChannelGameRoom)
	if err != nil {
		s.log.Errorf("subscribe %s: %v", protocol.ChannelGameRoom, err)
		return
	}
	s.sub = sub
	s.sync.Attach(sub)
	s.log.Infof("subscribed to realtime channel %q", protocol.ChannelGameRoom)

	local, _ := s.sync.Local()
	if err := sub.Send(ctx, protocol.EventPlayerMove, local); err != nil {
		s.log.Warnf("announce: %v", err)
	}
}

func (s *Session) seedFromStore(ctx context.Context) {
	rows, err := s.store.List(ctx)
	if err != nil {
		s.log.Errorf("Error fetching all players: %v", err)
		return
	}
	s.sync.MergeSnapshot(rows)
}

func (s *Session) release() {
	s.sync.Attach(nil)
	if s.sub == nil {
		return
	}
	if err := s.sub.Close(); err != nil {
		s.log.Debugf("close subscription: %v", err)
	}
	s.sub = nil
}

// rename 已有记录：保留位置与颜色，只更新昵称
func (s *Session) rename(ctx context.Context, p PlayerState, name string) PlayerState {
	p.Name = name
	p.Seq = s.sync.nextSeq(p.Seq)
	if err := s.store.Update(ctx, p.ID, Patch{Name: &name, Seq: p.Seq}); err != nil {
		s.log.Errorf("Error updating player name: %v", err)
	}
	return p
}

func (s *Session) newPlayer(id, name string) PlayerState {
	x, y := s.field.RandomPosition(s.rand)
	return PlayerState{
		ID:    id,
		X:     x,
		Y:     y,
		Color: RandomColor(s.rand),
		Name:  name,
		Seq:   s.sync.nextSeq(0),
	}
}
