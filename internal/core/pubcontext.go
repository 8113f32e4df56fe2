package core

import (
	"context"
	"errors"
	"time"

	"github.com/amoylab/mdprovider/internal/dictionary"
	"github.com/amoylab/mdprovider/internal/session"
	"github.com/amoylab/mdprovider/pkg/logger"
	"github.com/amoylab/mdprovider/pkg/metrics"
	"github.com/amoylab/mdprovider/pkg/omm"

	"go.uber.org/zap"
)

// PubContext is the publishing context. It owns every piece of provider state
// and is only used from the dispatch goroutine.
type PubContext struct {
	transport  Transport
	router     *ReqRouter
	sessions   *SessionRegistry
	directory  *ServiceDirectory
	service    *ServiceInfo
	dictionary *dictionary.Dictionary
	metrics    *metrics.Metrics
	store      session.Store
	timers     map[omm.Handle]*timerEntry

	queueSize  int
	inline     bool
	dispatcher *Dispatcher

	logger *zap.Logger
}

type timerEntry struct {
	fn        func(ctx context.Context)
	repeating bool
	handle    omm.Handle
}

// Option configures a PubContext.
type Option func(*PubContext)

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *PubContext) { p.metrics = m }
}

// WithSessionStore mirrors session metadata into store.
func WithSessionStore(store session.Store) Option {
	return func(p *PubContext) { p.store = store }
}

// WithService publishes svc and makes it the default service.
func WithService(svc *ServiceInfo) Option {
	return func(p *PubContext) {
		p.directory.Add(svc)
		p.service = svc
	}
}

func WithDictionary(d *dictionary.Dictionary) Option {
	return func(p *PubContext) { p.dictionary = d }
}

func WithQueueSize(n int) Option {
	return func(p *PubContext) { p.queueSize = n }
}

// WithInlineDispatch handles posted events on the caller's goroutine instead
// of queueing them. Only meant for single goroutine tests.
func WithInlineDispatch() Option {
	return func(p *PubContext) { p.inline = true }
}

// NewPubContext creates a publishing context on top of transport.
func NewPubContext(logger *zap.Logger, transport Transport, opts ...Option) *PubContext {
	p := &PubContext{
		transport: transport,
		sessions:  newSessionRegistry(),
		directory: NewServiceDirectory(),
		timers:    make(map[omm.Handle]*timerEntry),
		logger:    logger.Named("core"),
	}
	p.router = newReqRouter(p)
	for _, opt := range opts {
		opt(p)
	}
	if !p.inline {
		p.dispatcher = NewDispatcher(p.logger, p.queueSize, p, p.metrics)
	}
	return p
}

func (p *PubContext) Logger() *zap.Logger { return p.logger }
func (p *PubContext) Transport() Transport { return p.transport }
func (p *PubContext) Router() *ReqRouter { return p.router }
func (p *PubContext) Directory() *ServiceDirectory { return p.directory }
func (p *PubContext) Sessions() *SessionRegistry { return p.sessions }
func (p *PubContext) Metrics() *metrics.Metrics { return p.metrics }
func (p *PubContext) Dictionary() *dictionary.Dictionary { return p.dictionary }

// Service returns the default service, nil when none was configured.
func (p *PubContext) Service() *ServiceInfo { return p.service }

func (p *PubContext) SetDictionary(d *dictionary.Dictionary) { p.dictionary = d }

// AddDomainMgr registers mgr with the router. A manager tied to a published
// service adds its model type to that service's capabilities.
func (p *PubContext) AddDomainMgr(mgr DomainMgr) {
	p.router.AddDomainMgr(mgr)
	name, ok := mgr.ServiceName()
	if !ok {
		return
	}
	svc, found := p.directory.Get(name)
	if !found {
		p.logger.Warn("domain manager names an unpublished service",
			logger.Domain(mgr.ModelType()), zap.String("service", name))
		return
	}
	svc.AddCapability(mgr.ModelType())
}

// Run drives the dispatcher until ctx is done.
func (p *PubContext) Run(ctx context.Context) error {
	if p.dispatcher == nil {
		<-ctx.Done()
		return nil
	}
	return p.dispatcher.Run(ctx)
}

// Post hands ev to the dispatch goroutine without blocking.
func (p *PubContext) Post(ev Event) error {
	if p.dispatcher == nil {
		p.HandleEvent(context.Background(), ev)
		return nil
	}
	return p.dispatcher.Post(ev)
}

// PostWait hands ev to the dispatch goroutine, waiting for queue space.
func (p *PubContext) PostWait(ctx context.Context, ev Event) error {
	if p.dispatcher == nil {
		p.HandleEvent(ctx, ev)
		return nil
	}
	return p.dispatcher.PostWait(ctx, ev)
}

// Do runs fn on the dispatch goroutine and waits until it returned. It is how
// other goroutines read provider state.
func (p *PubContext) Do(ctx context.Context, fn func(ctx context.Context, pub *PubContext)) error {
	done := make(chan struct{})
	err := p.PostWait(ctx, FuncEvent{Fn: func(ctx context.Context, pub *PubContext) {
		defer close(done)
		fn(ctx, pub)
	}})
	if err != nil {
		return err
	}
	var stopped <-chan struct{}
	if p.dispatcher != nil {
		stopped = p.dispatcher.Done()
	}
	select {
	case <-done:
		return nil
	case <-stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrDispatcherClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleEvent implements EventHandler.
func (p *PubContext) HandleEvent(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case ConnectionEvent:
		p.accept(ctx, e)
	case RequestEvent:
		s, ok := p.sessions.Get(e.Session)
		if !ok {
			p.logger.Debug("request for unknown session", logger.Session(e.Session), logger.Token(e.Token))
			return
		}
		s.HandleEvent(ctx, ItemEvent{Token: e.Token, Msg: e.Msg})
	case InactiveEvent:
		s, ok := p.sessions.Get(e.Session)
		if !ok {
			return
		}
		s.HandleEvent(ctx, SessionInactive{})
	case TimerEvent:
		p.fireTimer(ctx, e.timer)
	case FuncEvent:
		e.Fn(ctx, p)
	default:
		p.logger.Warn("unknown event type", zap.String("event", ev.eventName()))
	}
}

func (p *PubContext) accept(ctx context.Context, e ConnectionEvent) {
	s := newClientSession(p, e.RemoteAddr)
	if err := s.Accept(ctx, e.Handle); err != nil {
		p.logger.Error("failed to accept client session", logger.Session(e.Handle), zap.Error(err))
		return
	}
	p.sessions.add(s)
	p.mirror(ctx, s)
	p.metrics.SessionOpened()
}

// Submit is the single path from domain managers to the transport. A final
// message removes the token from the session before it is written.
func (p *PubContext) Submit(ctx context.Context, s *ClientSession, token omm.Token, msg *omm.Msg) error {
	if s.Terminated() {
		return ErrSessionTerminated
	}
	if msg.IsFinal() {
		s.removeStream(token)
	}
	err := p.transport.Submit(ctx, s.Handle(), token, msg)
	if err != nil {
		if errors.Is(err, ErrTargetGone) {
			if s.removeStream(token) {
				s.logger.Debug("submit target gone, stream closed", logger.Token(token))
			}
		}
		return err
	}
	p.metrics.ResponseSent(msg.ModelType.String(), msg.Type.String())
	return nil
}

// ScheduleTimer arranges for fn to run on the dispatch goroutine after delay,
// and every delay after that when repeating.
func (p *PubContext) ScheduleTimer(delay time.Duration, repeating bool, fn func(ctx context.Context)) omm.Handle {
	t := &timerEntry{fn: fn, repeating: repeating}
	t.handle = p.transport.ScheduleTimer(delay, repeating, func() {
		if err := p.Post(TimerEvent{timer: t}); err != nil {
			p.logger.Warn("failed to post timer event", zap.Error(err))
		}
	})
	p.timers[t.handle] = t
	return t.handle
}

// UnregisterTimer cancels a timer. Expirations already queued are discarded.
func (p *PubContext) UnregisterTimer(h omm.Handle) {
	if _, ok := p.timers[h]; !ok {
		return
	}
	delete(p.timers, h)
	p.transport.UnregisterTimer(h)
}

func (p *PubContext) fireTimer(ctx context.Context, t *timerEntry) {
	if t == nil || p.timers[t.handle] != t {
		return
	}
	if !t.repeating {
		delete(p.timers, t.handle)
	}
	t.fn(ctx)
}

// CloseAll treats every live session as lost. Used on shutdown.
func (p *PubContext) CloseAll(ctx context.Context) {
	for _, s := range p.sessions.List() {
		s.HandleEvent(ctx, SessionInactive{})
	}
}

func (p *PubContext) mirror(ctx context.Context, s *ClientSession) {
	if p.store == nil || s.Terminated() {
		return
	}
	if err := p.store.Register(ctx, s.meta()); err != nil {
		p.logger.Warn("failed to mirror session", logger.Session(s.Handle()), zap.Error(err))
	}
}

func (p *PubContext) removeSession(ctx context.Context, s *ClientSession) {
	if !p.sessions.remove(s.Handle()) {
		return
	}
	if p.store != nil {
		if err := p.store.Unregister(ctx, string(s.Handle())); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
			p.logger.Warn("failed to remove session from store", logger.Session(s.Handle()), zap.Error(err))
		}
	}
	p.transport.UnregisterClient(s.Handle())
	p.metrics.SessionClosed()
	s.logger.Info("client session removed")
}
