package core

import (
	"context"
	"time"

	"github.com/amoylab/mdprovider/internal/session"
	"github.com/amoylab/mdprovider/pkg/logger"
	"github.com/amoylab/mdprovider/pkg/omm"

	"go.uber.org/zap"
)

type sessionState uint8

const (
	sessionAccepted sessionState = iota
	sessionActive
	sessionTerminated
)

// SessionEvent is something that happened to one client session.
type SessionEvent interface {
	sessionEvent()
}

// ItemEvent is an inbound request, re-request or close on a token.
type ItemEvent struct {
	Token omm.Token
	Msg   *omm.Msg
}

// SessionInactive reports that the transport lost the connection.
type SessionInactive struct{}

// SessionInvalidated asks the session to drop its login and every stream,
// without sending per stream responses.
type SessionInvalidated struct {
	Reason string
}

func (ItemEvent) sessionEvent() {}
func (SessionInactive) sessionEvent() {}
func (SessionInvalidated) sessionEvent() {}

// ClientSession tracks the streams of one accepted connection.
type ClientSession struct {
	pub        *PubContext
	handle     omm.Handle
	remoteAddr string
	createdAt  time.Time
	state      sessionState
	streams    map[omm.Token]StreamItem

	loggedIn      bool
	user          string
	loginToken    omm.Token
	hasLoginToken bool

	logger *zap.Logger
}

func newClientSession(pub *PubContext, remoteAddr string) *ClientSession {
	return &ClientSession{
		pub:        pub,
		remoteAddr: remoteAddr,
		createdAt:  time.Now(),
		streams:    make(map[omm.Token]StreamItem),
		logger:     pub.Logger().Named("session"),
	}
}

// Accept registers the connection with the transport and records the handle
// the transport actually issued.
func (s *ClientSession) Accept(ctx context.Context, conn omm.Handle) error {
	h, err := s.pub.Transport().RegisterClient(ctx, conn)
	if err != nil {
		return err
	}
	if h != conn {
		s.logger.Warn("transport returned a different session handle",
			zap.String("requested", string(conn)),
			zap.String("returned", string(h)))
	}
	s.handle = h
	s.logger = s.logger.With(logger.Session(h))
	s.state = sessionActive
	s.logger.Info("client session accepted", zap.String("remote_addr", s.remoteAddr))
	return nil
}

func (s *ClientSession) Handle() omm.Handle { return s.handle }
func (s *ClientSession) RemoteAddr() string { return s.remoteAddr }
func (s *ClientSession) CreatedAt() time.Time { return s.createdAt }
func (s *ClientSession) LoggedIn() bool { return s.loggedIn }
func (s *ClientSession) User() string { return s.user }
func (s *ClientSession) Terminated() bool { return s.state == sessionTerminated }

// LoginToken returns the token of the current login stream, if any.
func (s *ClientSession) LoginToken() (omm.Token, bool) {
	return s.loginToken, s.hasLoginToken
}

// SetLoggedIn records the login outcome and mirrors it to the session store.
func (s *ClientSession) SetLoggedIn(ctx context.Context, loggedIn bool, user string) {
	s.loggedIn = loggedIn
	s.user = user
	if !loggedIn {
		s.user = ""
	}
	s.pub.mirror(ctx, s)
}

// Stream returns the item tracked for token.
func (s *ClientSession) Stream(token omm.Token) (StreamItem, bool) {
	item, ok := s.streams[token]
	return item, ok
}

// StreamCount is the number of open streams.
func (s *ClientSession) StreamCount() int { return len(s.streams) }

// Tokens lists the open tokens, in no particular order.
func (s *ClientSession) Tokens() []omm.Token {
	tokens := make([]omm.Token, 0, len(s.streams))
	for t := range s.streams {
		tokens = append(tokens, t)
	}
	return tokens
}

// HandleEvent is the only entry point for session traffic.
func (s *ClientSession) HandleEvent(ctx context.Context, ev SessionEvent) {
	if s.state == sessionTerminated {
		return
	}
	switch e := ev.(type) {
	case ItemEvent:
		s.handleItem(ctx, e.Token, e.Msg)
	case SessionInactive:
		s.handleInactive(ctx)
	case SessionInvalidated:
		s.logger.Info("session invalidated", zap.String("reason", e.Reason))
		s.forceLogout(ctx)
	}
}

func (s *ClientSession) handleItem(ctx context.Context, token omm.Token, msg *omm.Msg) {
	router := s.pub.Router()

	if msg.Type == omm.MsgTypeCloseReq {
		item, ok := s.streams[token]
		if !ok {
			return
		}
		// The open stream decides the domain, whatever the close claims.
		closeMsg := *msg
		closeMsg.ModelType = item.ModelType()
		s.dropStream(token, item)
		router.ProcessCloseRequest(ctx, s, token, item, &closeMsg)
		return
	}

	if msg.ModelType == omm.ModelLogin {
		s.loginToken = token
		s.hasLoginToken = true
	}

	if item, ok := s.streams[token]; ok {
		router.ProcessReRequest(ctx, s, token, item, msg)
		return
	}
	item := router.ProcessRequest(ctx, s, token, msg)
	if item == nil || s.state == sessionTerminated {
		return
	}
	s.streams[token] = item
	s.pub.Metrics().StreamOpened(item.ModelType().String())
}

func (s *ClientSession) handleInactive(ctx context.Context) {
	s.logger.Info("client session inactive", zap.Int("streams", len(s.streams)))
	// Nothing may be sent from here on.
	s.state = sessionTerminated

	if s.hasLoginToken {
		token := s.loginToken
		item, ok := s.streams[token]
		if ok {
			s.dropStream(token, item)
		}
		s.pub.Router().ProcessCloseRequest(ctx, s, token, item, omm.NewCloseRequest(omm.ModelLogin))
		s.loginToken, s.hasLoginToken = 0, false
	}
	for token, item := range s.streams {
		s.dropStream(token, item)
	}
	s.pub.removeSession(ctx, s)
}

// forceLogout clears login state and every stream. Items are closed without
// any response.
func (s *ClientSession) forceLogout(ctx context.Context) {
	s.loginToken, s.hasLoginToken = 0, false
	for token, item := range s.streams {
		s.dropStream(token, item)
	}
	s.SetLoggedIn(ctx, false, "")
}

// removeStream forgets token after its final response. It reports whether an
// item was tracked.
func (s *ClientSession) removeStream(token omm.Token) bool {
	item, ok := s.streams[token]
	if !ok {
		return false
	}
	s.dropStream(token, item)
	return true
}

func (s *ClientSession) dropStream(token omm.Token, item StreamItem) {
	delete(s.streams, token)
	if s.hasLoginToken && s.loginToken == token {
		s.loginToken, s.hasLoginToken = 0, false
	}
	s.pub.Metrics().StreamClosed(item.ModelType().String())
	item.Close()
	s.logger.Debug("stream closed", logger.Token(token), logger.Domain(item.ModelType()))
}

func (s *ClientSession) meta() *session.Meta {
	return &session.Meta{
		ID:         string(s.handle),
		RemoteAddr: s.remoteAddr,
		CreatedAt:  s.createdAt,
		LoggedIn:   s.loggedIn,
		User:       s.user,
	}
}
