package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/amoylab/mdprovider/pkg/metrics"
	"github.com/amoylab/mdprovider/pkg/omm"
	"go.uber.org/zap"
)

type submitted struct {
	session omm.Handle
	token   omm.Token
	msg     *omm.Msg
}

type fakeTimer struct {
	delay     time.Duration
	repeating bool
	fn        func()
}

// fakeTransport records everything the core hands to it.
type fakeTransport struct {
	mu           sync.Mutex
	registered   map[omm.Handle]bool
	unregistered []omm.Handle
	sent         []submitted
	gone         map[omm.Token]bool
	timers       map[omm.Handle]*fakeTimer
	timerSeq     int
	renameTo     omm.Handle
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		registered: make(map[omm.Handle]bool),
		gone:       make(map[omm.Token]bool),
		timers:     make(map[omm.Handle]*fakeTimer),
	}
}

func (f *fakeTransport) RegisterClient(_ context.Context, conn omm.Handle) (omm.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := conn
	if f.renameTo != "" {
		h = f.renameTo
	}
	f.registered[h] = true
	return h, nil
}

func (f *fakeTransport) UnregisterClient(h omm.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.registered, h)
	f.unregistered = append(f.unregistered, h)
}

func (f *fakeTransport) Submit(_ context.Context, h omm.Handle, token omm.Token, msg *omm.Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone[token] {
		return ErrTargetGone
	}
	f.sent = append(f.sent, submitted{session: h, token: token, msg: msg})
	return nil
}

func (f *fakeTransport) ScheduleTimer(delay time.Duration, repeating bool, fn func()) omm.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timerSeq++
	h := omm.Handle(fmt.Sprintf("timer-%d", f.timerSeq))
	f.timers[h] = &fakeTimer{delay: delay, repeating: repeating, fn: fn}
	return h
}

func (f *fakeTransport) UnregisterTimer(h omm.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.timers, h)
}

// fire runs the timer callback as the transport would.
func (f *fakeTransport) fire(h omm.Handle) {
	f.mu.Lock()
	t, ok := f.timers[h]
	f.mu.Unlock()
	if ok {
		t.fn()
	}
}

func (f *fakeTransport) messages() []submitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]submitted, len(f.sent))
	copy(out, f.sent)
	return out
}

// recordingMgr tracks a core.Stream per request and records every call.
type recordingMgr struct {
	BaseDomainMgr
	requests   []omm.Token
	reRequests []omm.Token
	closes     []omm.Token
	nilItems   bool
}

func newRecordingMgr(pub *PubContext, model omm.MsgModelType, service string) *recordingMgr {
	return &recordingMgr{BaseDomainMgr: NewBaseDomainMgr(pub, model, service)}
}

func (m *recordingMgr) ProcessRequest(ctx context.Context, s *ClientSession, token omm.Token, msg *omm.Msg) StreamItem {
	m.requests = append(m.requests, token)
	if m.nilItems {
		return nil
	}
	_ = m.Submit(ctx, s, token, omm.NewRefresh(m.ModelType(), msg.Has(omm.IndRefresh)))
	return NewStream(s, token, msg)
}

func (m *recordingMgr) ProcessReRequest(_ context.Context, _ *ClientSession, token omm.Token, item StreamItem, msg *omm.Msg) {
	m.reRequests = append(m.reRequests, token)
	if st, ok := item.(*Stream); ok {
		st.ApplyReRequest(msg)
	}
}

func (m *recordingMgr) ProcessCloseRequest(_ context.Context, _ *ClientSession, token omm.Token, _ StreamItem, _ *omm.Msg) {
	m.closes = append(m.closes, token)
}

// countingItem counts Close calls.
type countingItem struct {
	model  omm.MsgModelType
	closed int
}

func (c *countingItem) ModelType() omm.MsgModelType { return c.model }
func (c *countingItem) Close() { c.closed++ }

func newTestPub(t *testing.T, opts ...Option) (*PubContext, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	opts = append([]Option{WithInlineDispatch()}, opts...)
	return NewPubContext(zap.NewNop(), tr, opts...), tr
}

// connect accepts a session on pub and returns it.
func connect(t *testing.T, pub *PubContext, h omm.Handle) *ClientSession {
	t.Helper()
	pub.HandleEvent(context.Background(), ConnectionEvent{Handle: h, RemoteAddr: "127.0.0.1:9000"})
	s, ok := pub.Sessions().Get(h)
	if !ok {
		t.Fatalf("session %s not accepted", h)
	}
	return s
}

func request(model omm.MsgModelType, name string, ind omm.Indication) *omm.Msg {
	return &omm.Msg{
		Type:        omm.MsgTypeRequest,
		ModelType:   model,
		Indications: ind,
		Attrib:      &omm.Attrib{Name: name},
	}
}

func send(pub *PubContext, h omm.Handle, token omm.Token, msg *omm.Msg) {
	pub.HandleEvent(context.Background(), RequestEvent{Session: h, Token: token, Msg: msg})
}

// gatheredValue sums every sample of the named counter or gauge.
func gatheredValue(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	mfs, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				total += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				total += metric.GetGauge().GetValue()
			}
		}
	}
	return total
}
