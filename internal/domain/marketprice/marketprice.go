// Package marketprice serves simulated instrument data: a refresh on request
// and periodic updates for every open, unpaused stream.
package marketprice

import (
	"context"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/amoylab/mdprovider/internal/common/config"
	"github.com/amoylab/mdprovider/internal/core"
	"github.com/amoylab/mdprovider/pkg/logger"
	"github.com/amoylab/mdprovider/pkg/omm"

	"go.uber.org/zap"
)

const (
	textUnknownService = "Unknown service"
	textItemNotFound   = "Item not found"
)

// watchList is the set of open streams of one session. Its timer runs only
// while the list is non-empty.
type watchList struct {
	session *core.ClientSession
	streams map[omm.Token]*core.Stream
	timer   omm.Handle
}

// Manager serves one instrument model type on one service.
type Manager struct {
	core.BaseDomainMgr
	items    map[string]struct{}
	allowAny bool
	interval time.Duration
	rng      *rand.Rand
	quotes   map[string]*quote
	watches  map[omm.Handle]*watchList
}

var _ core.DomainMgr = (*Manager)(nil)

// New creates a manager for model on the configured service.
func New(pub *core.PubContext, model omm.MsgModelType, cfg *config.ServiceConfig) *Manager {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	items := make(map[string]struct{}, len(cfg.Items))
	for _, name := range cfg.Items {
		items[name] = struct{}{}
	}
	interval := cfg.UpdateInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Manager{
		BaseDomainMgr: core.NewBaseDomainMgr(pub, model, cfg.Name),
		items:         items,
		allowAny:      cfg.AllowAnyItem,
		interval:      interval,
		rng:           rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1)),
		quotes:        make(map[string]*quote),
		watches:       make(map[omm.Handle]*watchList),
	}
}

// WatchCount is the number of open streams of session h.
func (m *Manager) WatchCount(h omm.Handle) int {
	wl, ok := m.watches[h]
	if !ok {
		return 0
	}
	return len(wl.streams)
}

func (m *Manager) ProcessRequest(ctx context.Context, s *core.ClientSession, token omm.Token, msg *omm.Msg) core.StreamItem {
	if text, ok := m.validate(msg); !ok {
		status := m.EncodeClosedStatus(text)
		status.Attrib = msg.Attrib.Clone()
		if err := m.Submit(ctx, s, token, status); err != nil {
			m.Logger().Debug("failed to send status", logger.Session(s.Handle()), zap.Error(err))
		}
		return nil
	}

	nonStreaming := msg.Has(omm.IndNonStreaming)
	q := m.quote(msg.Name())
	resp := m.encodeRefresh(q, msg.Attrib, msg.Has(omm.IndRefresh))
	if nonStreaming {
		resp.StreamState = omm.StreamNonStreaming
	}
	if err := m.Submit(ctx, s, token, resp); err != nil {
		m.Logger().Debug("failed to send refresh", logger.Session(s.Handle()), logger.Item(q.name), zap.Error(err))
		return nil
	}
	if nonStreaming {
		return nil
	}

	st := core.NewStream(s, token, msg)
	m.watch(st)
	return st
}

func (m *Manager) ProcessReRequest(ctx context.Context, s *core.ClientSession, token omm.Token, item core.StreamItem, msg *omm.Msg) {
	st, ok := item.(*core.Stream)
	if !ok {
		return
	}
	resumed := st.ApplyReRequest(msg)
	if !msg.Has(omm.IndRefresh) && !resumed {
		return
	}
	resp := m.encodeRefresh(m.quote(st.Name()), st.Attrib(), msg.Has(omm.IndRefresh))
	if err := m.Submit(ctx, s, token, resp); err != nil {
		m.Logger().Debug("failed to send refresh", logger.Session(s.Handle()), zap.Error(err))
	}
}

func (m *Manager) ProcessCloseRequest(_ context.Context, _ *core.ClientSession, _ omm.Token, item core.StreamItem, _ *omm.Msg) {
	if item != nil {
		item.Close()
	}
}

func (m *Manager) validate(msg *omm.Msg) (string, bool) {
	svcName, _ := m.ServiceName()
	if msg.ServiceName() != svcName {
		return textUnknownService, false
	}
	name := msg.Name()
	if name == "" {
		return textItemNotFound, false
	}
	if _, ok := m.items[name]; !ok && !m.allowAny {
		return textItemNotFound, false
	}
	return "", true
}

func (m *Manager) quote(name string) *quote {
	q, ok := m.quotes[name]
	if !ok {
		q = newQuote(name, m.rng)
		m.quotes[name] = q
	}
	return q
}

// watch adds st to its session's watch list, starting the session timer for
// the first stream.
func (m *Manager) watch(st *core.Stream) {
	s := st.Session()
	wl, ok := m.watches[s.Handle()]
	if !ok {
		wl = &watchList{session: s, streams: make(map[omm.Token]*core.Stream)}
		h := s.Handle()
		wl.timer = m.Pub().ScheduleTimer(m.interval, true, func(ctx context.Context) { m.tick(ctx, h) })
		m.watches[h] = wl
		m.Logger().Debug("update timer started", logger.Session(h))
	}
	wl.streams[st.Token()] = st
	st.OnClose(m.unwatch)
}

func (m *Manager) unwatch(st *core.Stream) {
	h := st.Session().Handle()
	wl, ok := m.watches[h]
	if !ok {
		return
	}
	delete(wl.streams, st.Token())
	if len(wl.streams) > 0 {
		return
	}
	m.Pub().UnregisterTimer(wl.timer)
	delete(m.watches, h)
	m.Logger().Debug("update timer stopped", logger.Session(h))
}

// tick sends one update per open, unpaused stream of session h.
func (m *Manager) tick(ctx context.Context, h omm.Handle) {
	wl, ok := m.watches[h]
	if !ok {
		return
	}
	// Submit may close streams, so work on a snapshot.
	tokens := make([]omm.Token, 0, len(wl.streams))
	for t := range wl.streams {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })

	include := m.fieldSet()
	for _, t := range tokens {
		st, ok := wl.streams[t]
		if !ok || st.Paused() {
			continue
		}
		q := m.quote(st.Name())
		q.advance(m.rng)
		upd := omm.NewUpdate(m.ModelType(), q.updateFields(include))
		if err := m.Submit(ctx, wl.session, t, upd); err != nil {
			m.Logger().Debug("failed to send update", logger.Session(h), logger.Token(t), zap.Error(err))
		}
	}
}

func (m *Manager) encodeRefresh(q *quote, req *omm.Attrib, solicited bool) *omm.Msg {
	resp := omm.NewRefresh(m.ModelType(), solicited)
	resp.Indications |= omm.IndClearCache
	resp.Attrib = &omm.Attrib{Name: q.name}
	if req != nil {
		resp.Attrib.NameType = req.NameType
		resp.Attrib.ServiceName = req.ServiceName
		resp.Attrib.ServiceID = req.ServiceID
	}
	resp.Payload = q.refreshFields(m.fieldSet())
	return resp
}

// fieldSet limits encoding to fields the loaded dictionary defines.
func (m *Manager) fieldSet() fieldSet {
	d := m.Pub().Dictionary()
	if d == nil {
		return allFields
	}
	return d.HasField
}
