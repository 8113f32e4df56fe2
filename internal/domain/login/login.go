// Package login serves the LOGIN domain.
package login

import (
	"context"

	"github.com/amoylab/mdprovider/internal/auth"
	"github.com/amoylab/mdprovider/internal/common/config"
	"github.com/amoylab/mdprovider/internal/core"
	"github.com/amoylab/mdprovider/pkg/logger"
	"github.com/amoylab/mdprovider/pkg/omm"

	"go.uber.org/zap"
)

const acceptedText = "Login accepted by host "

// Manager accepts or rejects logins. One login stream per session is
// expected; a second login request just replaces the recorded login token.
type Manager struct {
	core.BaseDomainMgr
	auth                        auth.Authenticator
	host                        string
	supportPauseResume          bool
	supportOptimizedPauseResume bool
}

var _ core.DomainMgr = (*Manager)(nil)

// New creates the login manager. A nil authenticator accepts every login.
func New(pub *core.PubContext, a auth.Authenticator, cfg *config.LoginConfig) *Manager {
	return &Manager{
		BaseDomainMgr:               core.NewBaseDomainMgr(pub, omm.ModelLogin, ""),
		auth:                        a,
		host:                        cfg.Host,
		supportPauseResume:          cfg.SupportPauseResume,
		supportOptimizedPauseResume: cfg.SupportOptimizedPauseResume,
	}
}

func (m *Manager) ProcessRequest(ctx context.Context, s *core.ClientSession, token omm.Token, msg *omm.Msg) core.StreamItem {
	user, err := m.authenticate(ctx, msg)
	if err != nil {
		m.reject(ctx, s, token, msg, err)
		return nil
	}
	s.SetLoggedIn(ctx, true, user)

	nonStreaming := msg.Has(omm.IndNonStreaming)
	if err := m.Submit(ctx, s, token, m.encodeRefresh(msg, msg.Has(omm.IndRefresh), nonStreaming)); err != nil {
		m.Logger().Debug("failed to send login refresh", logger.Session(s.Handle()), zap.Error(err))
		return nil
	}
	m.Logger().Info("login accepted", logger.Session(s.Handle()), zap.String("user", user))
	if nonStreaming {
		return nil
	}
	return core.NewStream(s, token, msg)
}

func (m *Manager) ProcessReRequest(ctx context.Context, s *core.ClientSession, token omm.Token, item core.StreamItem, msg *omm.Msg) {
	// A re-request carrying a new token is a credential refresh.
	if creds := auth.CredentialsFromAttrib(msg.Attrib); creds.Token != "" && m.auth != nil {
		if _, err := m.auth.Authenticate(ctx, creds); err != nil {
			m.reject(ctx, s, token, msg, err)
			return
		}
	}
	if st, ok := item.(*core.Stream); ok {
		st.ApplyReRequest(msg)
	}
	if !msg.Has(omm.IndRefresh) {
		return
	}
	if err := m.Submit(ctx, s, token, m.encodeRefresh(msg, true, false)); err != nil {
		m.Logger().Debug("failed to send login refresh", logger.Session(s.Handle()), zap.Error(err))
	}
}

func (m *Manager) ProcessCloseRequest(ctx context.Context, s *core.ClientSession, token omm.Token, item core.StreamItem, _ *omm.Msg) {
	s.SetLoggedIn(ctx, false, "")
	if item != nil {
		item.Close()
	}
	m.Logger().Info("logged out", logger.Session(s.Handle()), logger.Token(token))
}

func (m *Manager) authenticate(ctx context.Context, msg *omm.Msg) (string, error) {
	creds := auth.CredentialsFromAttrib(msg.Attrib)
	if m.auth == nil {
		return creds.User, nil
	}
	return m.auth.Authenticate(ctx, creds)
}

// reject refuses the login and invalidates the whole session.
func (m *Manager) reject(ctx context.Context, s *core.ClientSession, token omm.Token, msg *omm.Msg, cause error) {
	m.Logger().Warn("login rejected", logger.Session(s.Handle()), zap.String("user", msg.Name()), zap.Error(cause))
	status := m.EncodeClosedStatus(cause.Error())
	status.Attrib = &omm.Attrib{Name: msg.Name(), NameType: nameType(msg)}
	if err := m.Submit(ctx, s, token, status); err != nil {
		m.Logger().Debug("failed to send login reject", zap.Error(err))
	}
	s.HandleEvent(ctx, core.SessionInvalidated{Reason: cause.Error()})
}

func (m *Manager) encodeRefresh(req *omm.Msg, solicited, nonStreaming bool) *omm.Msg {
	resp := omm.NewRefresh(omm.ModelLogin, solicited)
	resp.StatusText = acceptedText + m.host
	resp.Attrib = m.responseAttrib(req.Attrib)
	if nonStreaming {
		resp.StreamState = omm.StreamNonStreaming
	}
	return resp
}

// responseAttrib echoes the request attributes, minus secrets, with the
// server's pause/resume support in place of whatever the client sent.
func (m *Manager) responseAttrib(req *omm.Attrib) *omm.Attrib {
	a := req.Clone()
	if a == nil {
		a = &omm.Attrib{}
	}
	elems := make(omm.ElementList, 0, len(a.Elements)+2)
	for _, e := range a.Elements {
		if e.Name == omm.ElemPassword || e.Name == omm.ElemAuthenticationToken {
			continue
		}
		elems = append(elems, e)
	}
	elems = elems.Set(omm.ElemSupportPauseResume, boolFlag(m.supportPauseResume))
	elems = elems.Set(omm.ElemSupportOptimizedPauseResume, boolFlag(m.supportOptimizedPauseResume))
	a.Elements = elems
	return a
}

func nameType(msg *omm.Msg) uint8 {
	if msg.Attrib == nil {
		return 0
	}
	return msg.Attrib.NameType
}

func boolFlag(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
