// Package directory serves the SOURCE (service directory) domain.
package directory

import (
	"context"
	"sort"

	"github.com/amoylab/mdprovider/internal/core"
	"github.com/amoylab/mdprovider/pkg/logger"
	"github.com/amoylab/mdprovider/pkg/omm"

	"go.uber.org/zap"
)

// Filters the directory answers. LOAD, DATA and LINK are ignored.
const (
	supportedFilters = omm.FilterInfo | omm.FilterState | omm.FilterGroup
	defaultFilter    = omm.FilterInfo | omm.FilterState
)

type streamKey struct {
	session omm.Handle
	token   omm.Token
}

// Manager answers directory requests from the live ServiceDirectory and
// pushes updates to open directory streams when a service changes.
type Manager struct {
	core.BaseDomainMgr
	streams map[streamKey]*core.Stream
}

var _ core.DomainMgr = (*Manager)(nil)

func New(pub *core.PubContext) *Manager {
	m := &Manager{
		BaseDomainMgr: core.NewBaseDomainMgr(pub, omm.ModelSource, ""),
		streams:       make(map[streamKey]*core.Stream),
	}
	pub.Directory().Subscribe(m.serviceChanged)
	return m
}

// StreamCount is the number of open directory streams.
func (m *Manager) StreamCount() int { return len(m.streams) }

func (m *Manager) ProcessRequest(ctx context.Context, s *core.ClientSession, token omm.Token, msg *omm.Msg) core.StreamItem {
	nonStreaming := msg.Has(omm.IndNonStreaming)
	resp := m.encodeRefresh(msg.Attrib, msg.Has(omm.IndRefresh))
	if nonStreaming {
		resp.StreamState = omm.StreamNonStreaming
	}
	if err := m.Submit(ctx, s, token, resp); err != nil {
		m.Logger().Debug("failed to send directory refresh", logger.Session(s.Handle()), zap.Error(err))
		return nil
	}
	if nonStreaming {
		return nil
	}

	st := core.NewStream(s, token, msg)
	key := streamKey{session: s.Handle(), token: token}
	m.streams[key] = st
	st.OnClose(func(*core.Stream) { delete(m.streams, key) })
	return st
}

func (m *Manager) ProcessReRequest(ctx context.Context, s *core.ClientSession, token omm.Token, item core.StreamItem, msg *omm.Msg) {
	st, ok := item.(*core.Stream)
	if !ok {
		return
	}
	st.ApplyReRequest(msg)
	if !msg.Has(omm.IndRefresh) {
		return
	}
	if err := m.Submit(ctx, s, token, m.encodeRefresh(st.Attrib(), true)); err != nil {
		m.Logger().Debug("failed to send directory refresh", logger.Session(s.Handle()), zap.Error(err))
	}
}

func (m *Manager) ProcessCloseRequest(_ context.Context, _ *core.ClientSession, _ omm.Token, item core.StreamItem, _ *omm.Msg) {
	if item != nil {
		item.Close()
	}
}

// serviceChanged runs on the dispatch goroutine whenever a ServiceInfo changes.
func (m *Manager) serviceChanged(svc *core.ServiceInfo, changed uint32) {
	if len(m.streams) == 0 {
		return
	}
	ctx := context.Background()
	for _, st := range m.sortedStreams() {
		if name, ok := st.ServiceName(); ok && name != svc.Name {
			continue
		}
		filter := effectiveFilter(st.Filter()) & changed
		if filter == 0 || st.Paused() {
			continue
		}
		payload := &omm.Map{Entries: []omm.MapEntry{{
			Action: omm.MapActionUpdate,
			Key:    uint64(svc.ID),
			Value:  encodeService(svc, filter),
		}}}
		upd := omm.NewUpdate(omm.ModelSource, payload)
		if err := m.Submit(ctx, st.Session(), st.Token(), upd); err != nil {
			m.Logger().Debug("failed to push directory update", logger.Session(st.Session().Handle()), zap.Error(err))
		}
	}
}

// sortedStreams gives a stable push order and lets Submit drop streams
// while iterating.
func (m *Manager) sortedStreams() []*core.Stream {
	list := make([]*core.Stream, 0, len(m.streams))
	for _, st := range m.streams {
		list = append(list, st)
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Session().Handle() != b.Session().Handle() {
			return a.Session().Handle() < b.Session().Handle()
		}
		return a.Token() < b.Token()
	})
	return list
}

func (m *Manager) encodeRefresh(req *omm.Attrib, solicited bool) *omm.Msg {
	var name, serviceName string
	var filter uint32
	if req != nil {
		name, serviceName, filter = req.Name, req.ServiceName, req.Filter
	}
	filter = effectiveFilter(filter)

	payload := &omm.Map{}
	for _, svc := range m.Pub().Directory().All() {
		if serviceName != "" && svc.Name != serviceName {
			continue
		}
		payload.Entries = append(payload.Entries, omm.MapEntry{
			Action: omm.MapActionAdd,
			Key:    uint64(svc.ID),
			Value:  encodeService(svc, filter),
		})
	}

	resp := omm.NewRefresh(omm.ModelSource, solicited)
	resp.Indications |= omm.IndClearCache
	resp.Attrib = &omm.Attrib{Name: name, ServiceName: serviceName, Filter: filter}
	resp.Payload = payload
	return resp
}

func effectiveFilter(f uint32) uint32 {
	if f == 0 {
		return defaultFilter
	}
	return f & supportedFilters
}
