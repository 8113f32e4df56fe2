// Package dictionary serves the DICTIONARY domain.
package dictionary

import (
	"context"
	"fmt"

	"github.com/amoylab/mdprovider/internal/common/config"
	"github.com/amoylab/mdprovider/internal/core"
	"github.com/amoylab/mdprovider/internal/dictionary"
	"github.com/amoylab/mdprovider/pkg/logger"
	"github.com/amoylab/mdprovider/pkg/omm"

	"go.uber.org/zap"
)

const (
	textUnknownDictionary = "Unknown dictionary"
	defaultFragmentSize   = 256
)

// Manager publishes dictionaries by name.
type Manager struct {
	core.BaseDomainMgr
	items        map[string]Item
	fieldName    string
	enumName     string
	fragmentSize int
}

var _ core.DomainMgr = (*Manager)(nil)

// New creates a manager publishing on the context's default service. It is
// not registered with the context until AutoDictionary or UseDictionary
// succeeds.
func New(pub *core.PubContext, cfg *config.DictionaryConfig) *Manager {
	service := ""
	if svc := pub.Service(); svc != nil {
		service = svc.Name
	}
	size := cfg.FragmentSize
	if size <= 0 {
		size = defaultFragmentSize
	}
	return &Manager{
		BaseDomainMgr: core.NewBaseDomainMgr(pub, omm.ModelDictionary, service),
		items:         make(map[string]Item),
		fieldName:     cfg.FieldName,
		enumName:      cfg.EnumName,
		fragmentSize:  size,
	}
}

// Register publishes item under its name, replacing any item of that name.
func (m *Manager) Register(item Item) {
	m.items[item.Name()] = item
}

// Item returns the dictionary published as name.
func (m *Manager) Item(name string) (Item, bool) {
	item, ok := m.items[name]
	return item, ok
}

// AutoDictionary loads the field and enum files and publishes them. Nothing is
// registered when loading fails.
func (m *Manager) AutoDictionary(fieldPath, enumPath string) error {
	d, err := dictionary.Load(fieldPath, enumPath)
	if err != nil {
		return fmt.Errorf("failed to load dictionary: %w", err)
	}
	m.UseDictionary(d)
	return nil
}

// UseDictionary publishes an already loaded dictionary: it registers both
// items and the manager, and advertises the names on the service. Items that
// are already published take the new dictionary in place, so open streams
// serve it on their next refresh.
func (m *Manager) UseDictionary(d *dictionary.Dictionary) {
	if f, ok := m.items[m.fieldName].(*FieldItem); ok {
		f.dict = d
	} else {
		m.Register(NewFieldItem(m.fieldName, d))
	}
	if e, ok := m.items[m.enumName].(*EnumItem); ok {
		e.dict = d
	} else {
		m.Register(NewEnumItem(m.enumName, d))
	}
	m.Pub().SetDictionary(d)
	m.Pub().AddDomainMgr(m)
	if svc, ok := m.Service(); ok {
		svc.AddDictionaryProvided(m.fieldName)
		svc.AddDictionaryProvided(m.enumName)
		svc.AddDictionaryUsed(m.fieldName)
		svc.AddDictionaryUsed(m.enumName)
	}
	m.Logger().Info("dictionaries published",
		zap.String("field", m.fieldName),
		zap.String("enum", m.enumName),
		zap.Int("fields", d.FieldCount()),
		zap.Int("enum_tables", len(d.EnumTables())))
}

func (m *Manager) ProcessRequest(ctx context.Context, s *core.ClientSession, token omm.Token, msg *omm.Msg) core.StreamItem {
	item, ok := m.items[msg.Name()]
	if !ok {
		status := m.EncodeClosedStatus(textUnknownDictionary)
		status.Attrib = msg.Attrib.Clone()
		if err := m.Submit(ctx, s, token, status); err != nil {
			m.Logger().Debug("failed to send dictionary status", logger.Session(s.Handle()), zap.Error(err))
		}
		return nil
	}

	nonStreaming := msg.Has(omm.IndNonStreaming)
	if err := m.sendRefresh(ctx, s, token, item, msg, msg.Has(omm.IndRefresh), nonStreaming); err != nil {
		m.Logger().Debug("failed to send dictionary", logger.Session(s.Handle()), logger.Item(item.Name()), zap.Error(err))
		return nil
	}
	if nonStreaming {
		return nil
	}
	return item
}

func (m *Manager) ProcessReRequest(ctx context.Context, s *core.ClientSession, token omm.Token, item core.StreamItem, msg *omm.Msg) {
	if !msg.Has(omm.IndRefresh) {
		return
	}
	di, ok := item.(Item)
	if !ok {
		return
	}
	if cur, ok := m.items[di.Name()]; ok {
		di = cur
	}
	if err := m.sendRefresh(ctx, s, token, di, msg, true, false); err != nil {
		m.Logger().Debug("failed to resend dictionary", logger.Session(s.Handle()), zap.Error(err))
	}
}

// ProcessCloseRequest has nothing to release; dictionary items are shared.
func (m *Manager) ProcessCloseRequest(context.Context, *core.ClientSession, omm.Token, core.StreamItem, *omm.Msg) {
}

// sendRefresh writes the dictionary as one or more refresh fragments.
func (m *Manager) sendRefresh(ctx context.Context, s *core.ClientSession, token omm.Token, item Item, req *omm.Msg, solicited, nonStreaming bool) error {
	verbosity := req.Filter()
	for _, resp := range m.encode(item, req, verbosity, solicited) {
		if nonStreaming {
			resp.StreamState = omm.StreamNonStreaming
		}
		if err := m.Submit(ctx, s, token, resp); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) encode(item Item, req *omm.Msg, verbosity uint32, solicited bool) []*omm.Msg {
	attrib := &omm.Attrib{Name: item.Name(), ServiceName: req.ServiceName(), Filter: verbosity}

	if verbosity == omm.DictVerbosityInfo {
		resp := omm.NewRefresh(omm.ModelDictionary, solicited)
		resp.Indications |= omm.IndClearCache
		resp.Attrib = attrib
		resp.Payload = &omm.Series{Summary: item.Summary()}
		return []*omm.Msg{resp}
	}

	entries := item.Entries(verbosity)
	var out []*omm.Msg
	for start := 0; ; start += m.fragmentSize {
		end := min(start+m.fragmentSize, len(entries))
		series := &omm.Series{Entries: entries[start:end]}
		resp := omm.NewRefresh(omm.ModelDictionary, solicited)
		resp.Attrib = attrib
		resp.Indications = 0
		if start == 0 {
			series.Summary = item.Summary()
			resp.Indications |= omm.IndClearCache
		}
		if end == len(entries) {
			resp.Indications |= omm.IndRefreshComplete
		}
		resp.Payload = series
		resp.SeqNum = uint32(len(out))
		out = append(out, resp)
		if end == len(entries) {
			break
		}
	}
	return out
}
