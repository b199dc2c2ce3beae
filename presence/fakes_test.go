package presence

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"pixelroom/protocol"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// memStore 内存行存储，行为与后端一致（seq 守卫）
type memStore struct {
	mu      sync.Mutex
	rows    map[string]PlayerState
	updates []Patch
	getErr  error
	listErr error

	// Get 先连续失败的次数（暂时故障），之后恢复正常
	getFails int
}

func newMemStore(rows ...PlayerState) *memStore {
	s := &memStore{rows: make(map[string]PlayerState)}
	for _, p := range rows {
		s.rows[p.ID] = p
	}
	return s
}

func (s *memStore) Get(_ context.Context, id string) (PlayerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return PlayerState{}, s.getErr
	}
	if s.getFails > 0 {
		s.getFails--
		return PlayerState{}, errors.New("timeout")
	}
	p, ok := s.rows[id]
	if !ok {
		return PlayerState{}, ErrNotFound
	}
	return p, nil
}

func (s *memStore) List(context.Context) ([]PlayerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]PlayerState, 0, len(s.rows))
	for _, p := range s.rows {
		out = append(out, p)
	}
	return out, nil
}

func (s *memStore) Insert(_ context.Context, p PlayerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[p.ID]; ok {
		return ErrAlreadyExists
	}
	s.rows[p.ID] = p
	return nil
}

func (s *memStore) Update(_ context.Context, id string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, patch)
	p, ok := s.rows[id]
	if !ok {
		return ErrNotFound
	}
	if patch.Seq <= p.Seq {
		return ErrStale
	}
	if patch.X != nil {
		p.X = *patch.X
	}
	if patch.Y != nil {
		p.Y = *patch.Y
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	p.Seq = patch.Seq
	s.rows[id] = p
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *memStore) row(id string) (PlayerState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	return p, ok
}

// fakeHub 内存频道：尽力投递，不回显发送者
type fakeHub struct {
	mu   sync.Mutex
	subs map[*fakeSub]struct{}
	err  error
}

func newFakeHub() *fakeHub {
	return &fakeHub{subs: make(map[*fakeSub]struct{})}
}

func (h *fakeHub) Subscribe(context.Context, string) (Subscription, error) {
	if h.err != nil {
		return nil, h.err
	}
	sub := &fakeSub{hub: h, events: make(chan Message, 64)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub, nil
}

type fakeSub struct {
	hub    *fakeHub
	events chan Message
	sent   []Message
	closed bool
}

func (s *fakeSub) Send(_ context.Context, event string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := Message{Event: event, Payload: b}
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.sent = append(s.sent, msg)
	for other := range s.hub.subs {
		if other == s {
			continue
		}
		select {
		case other.events <- msg:
		default:
		}
	}
	return nil
}

func (s *fakeSub) Events() <-chan Message { return s.events }

func (s *fakeSub) Close() error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.closed = true
	delete(s.hub.subs, s)
	return nil
}

// recordingPub 只记录发出的广播
type recordingPub struct {
	sent []PlayerState
}

func (p *recordingPub) Send(_ context.Context, event string, payload any) error {
	if st, ok := payload.(PlayerState); ok && event == protocol.EventPlayerMove {
		p.sent = append(p.sent, st)
	}
	return nil
}

type memProfile struct {
	ident   Identity
	loadErr error
	cleared bool
}

func (p *memProfile) Load() (Identity, error) {
	if p.loadErr != nil {
		return Identity{}, p.loadErr
	}
	return p.ident, nil
}

func (p *memProfile) Save(i Identity) error {
	p.ident = i
	p.cleared = false
	return nil
}

func (p *memProfile) Clear() error {
	p.ident = Identity{}
	p.cleared = true
	return nil
}

// drain 在当前协程里处理所有已到达的广播（模拟事件循环）
func drain(s *Session) {
	for {
		select {
		case msg, ok := <-s.Events():
			if !ok {
				return
			}
			s.HandleMessage(msg)
		default:
			return
		}
	}
}
