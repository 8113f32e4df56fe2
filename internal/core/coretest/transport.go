// Package coretest provides an in-memory core.Transport and helpers for
// testing domain managers.
package coretest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/amoylab/mdprovider/internal/core"
	"github.com/amoylab/mdprovider/pkg/omm"

	"go.uber.org/zap"
)

// Sent is one message handed to the transport.
type Sent struct {
	Session omm.Handle
	Token   omm.Token
	Msg     *omm.Msg
}

type timer struct {
	delay     time.Duration
	repeating bool
	fn        func()
}

// Transport records submits and lets tests fire timers by hand.
type Transport struct {
	mu           sync.Mutex
	sent         []Sent
	unregistered []omm.Handle
	gone         map[omm.Token]bool
	timers       map[omm.Handle]*timer
	seq          int
}

var _ core.Transport = (*Transport)(nil)

func NewTransport() *Transport {
	return &Transport{
		gone:   make(map[omm.Token]bool),
		timers: make(map[omm.Handle]*timer),
	}
}

func (t *Transport) RegisterClient(_ context.Context, conn omm.Handle) (omm.Handle, error) {
	return conn, nil
}

func (t *Transport) UnregisterClient(h omm.Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unregistered = append(t.unregistered, h)
}

func (t *Transport) Submit(_ context.Context, h omm.Handle, token omm.Token, msg *omm.Msg) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gone[token] {
		return core.ErrTargetGone
	}
	t.sent = append(t.sent, Sent{Session: h, Token: token, Msg: msg})
	return nil
}

func (t *Transport) ScheduleTimer(delay time.Duration, repeating bool, fn func()) omm.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	h := omm.Handle(fmt.Sprintf("timer-%d", t.seq))
	t.timers[h] = &timer{delay: delay, repeating: repeating, fn: fn}
	return h
}

func (t *Transport) UnregisterTimer(h omm.Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.timers, h)
}

// SetGone makes every later submit on token fail with core.ErrTargetGone.
func (t *Transport) SetGone(token omm.Token) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gone[token] = true
}

// Sent returns a copy of everything submitted so far.
func (t *Transport) Sent() []Sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Sent, len(t.sent))
	copy(out, t.sent)
	return out
}

// SentOn returns the messages submitted on token.
func (t *Transport) SentOn(token omm.Token) []*omm.Msg {
	var out []*omm.Msg
	for _, s := range t.Sent() {
		if s.Token == token {
			out = append(out, s.Msg)
		}
	}
	return out
}

// Reset forgets the recorded submits.
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = nil
}

// Timers returns the handles of the scheduled timers.
func (t *Transport) Timers() []omm.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]omm.Handle, 0, len(t.timers))
	for h := range t.timers {
		out = append(out, h)
	}
	return out
}

// TimerDelay reports the delay and repeat flag of a scheduled timer.
func (t *Transport) TimerDelay(h omm.Handle) (time.Duration, bool, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tm, ok := t.timers[h]
	if !ok {
		return 0, false, false
	}
	return tm.delay, tm.repeating, true
}

// Fire expires a timer as the real transport would.
func (t *Transport) Fire(h omm.Handle) {
	t.mu.Lock()
	tm, ok := t.timers[h]
	t.mu.Unlock()
	if ok {
		tm.fn()
	}
}

func (t *Transport) Unregistered() []omm.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]omm.Handle, len(t.unregistered))
	copy(out, t.unregistered)
	return out
}

// NewPub builds an inline dispatching PubContext over a fresh Transport.
func NewPub(t *testing.T, opts ...core.Option) (*core.PubContext, *Transport) {
	t.Helper()
	tr := NewTransport()
	opts = append([]core.Option{core.WithInlineDispatch()}, opts...)
	return core.NewPubContext(zap.NewNop(), tr, opts...), tr
}

// Connect accepts a session with handle h.
func Connect(t *testing.T, pub *core.PubContext, h omm.Handle) *core.ClientSession {
	t.Helper()
	pub.HandleEvent(context.Background(), core.ConnectionEvent{Handle: h, RemoteAddr: "127.0.0.1:14002"})
	s, ok := pub.Sessions().Get(h)
	if !ok {
		t.Fatalf("session %s not accepted", h)
	}
	return s
}

// Send delivers msg on token as if it arrived from the network.
func Send(pub *core.PubContext, h omm.Handle, token omm.Token, msg *omm.Msg) {
	pub.HandleEvent(context.Background(), core.RequestEvent{Session: h, Token: token, Msg: msg})
}

// Request builds a request for model with the given name and indications.
func Request(model omm.MsgModelType, name string, ind omm.Indication) *omm.Msg {
	return &omm.Msg{
		Type:        omm.MsgTypeRequest,
		ModelType:   model,
		Indications: ind,
		Attrib:      &omm.Attrib{Name: name},
	}
}
