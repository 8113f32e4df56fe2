// Package ws is the websocket transport of the provider. Consumers exchange
// JSON frames; every frame carries the stream token as "id".
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/amoylab/mdprovider/internal/common/config"
	"github.com/amoylab/mdprovider/internal/core"
	"github.com/amoylab/mdprovider/pkg/logger"
	"github.com/amoylab/mdprovider/pkg/metrics"
	"github.com/amoylab/mdprovider/pkg/omm"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrUnknownConnection is returned by RegisterClient for a handle the
// transport never issued or already dropped.
var ErrUnknownConnection = errors.New("unknown connection")

// Poster is the part of core.PubContext the transport feeds.
type Poster interface {
	Post(ev core.Event) error
	PostWait(ctx context.Context, ev core.Event) error
}

type timer struct {
	t       *time.Timer
	stopped bool
}

// Transport accepts websocket consumers and implements core.Transport.
type Transport struct {
	logger  *zap.Logger
	cfg     config.TransportConfig
	metrics *metrics.Metrics
	poster  Poster

	mu     sync.RWMutex
	conns  map[omm.Handle]*conn
	timers map[omm.Handle]*timer
}

var _ core.Transport = (*Transport)(nil)

// New creates a transport. Bind must be called before it serves connections.
func New(logger *zap.Logger, cfg config.TransportConfig, m *metrics.Metrics) *Transport {
	return &Transport{
		logger:  logger.Named("transport.ws"),
		cfg:     cfg,
		metrics: m,
		conns:   make(map[omm.Handle]*conn),
		timers:  make(map[omm.Handle]*timer),
	}
}

// Bind sets where connection, request and timer events are posted.
func (t *Transport) Bind(p Poster) {
	t.poster = p
}

// Handler returns the upgrade handler, instrumented with otelhttp.
func (t *Transport) Handler() http.Handler {
	return otelhttp.NewHandler(t, "ws.accept")
}

// ConnCount is the number of live connections.
func (t *Transport) ConnCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}

func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if t.poster == nil {
		http.Error(w, "transport not ready", http.StatusServiceUnavailable)
		return
	}
	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: t.cfg.OriginPatterns,
	})
	if err != nil {
		t.logger.Warn("failed to accept websocket", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}
	if t.cfg.ReadLimit > 0 {
		wsConn.SetReadLimit(t.cfg.ReadLimit)
	}

	// The request context ends when the handler returns; the connection
	// lives on its own.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	c := &conn{
		handle:     omm.Handle(uuid.NewString()),
		remoteAddr: r.RemoteAddr,
		ws:         wsConn,
		writeCh:    make(chan []byte, max(t.cfg.WriteBuffer, 1)),
		cancel:     cancel,
	}
	if t.cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(t.cfg.RateLimit), max(t.cfg.RateBurst, 1))
	}
	log := t.logger.With(logger.Session(c.handle))

	t.mu.Lock()
	t.conns[c.handle] = c
	t.mu.Unlock()

	if err := t.poster.PostWait(ctx, core.ConnectionEvent{Handle: c.handle, RemoteAddr: c.remoteAddr}); err != nil {
		log.Warn("failed to announce connection", zap.Error(err))
		t.drop(c, websocket.StatusTryAgainLater, "provider busy")
		return
	}
	log.Debug("websocket connected", zap.String("remote_addr", c.remoteAddr))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return t.readLoop(egCtx, c) })
	eg.Go(func() error { return t.writeLoop(egCtx, c) })
	err = eg.Wait()

	t.drop(c, websocket.StatusNormalClosure, "")
	if err != nil && !isNormalClose(err) {
		log.Debug("websocket closed", zap.Error(err))
	}
	// The session may already be gone when the provider closed the connection.
	if err := t.poster.PostWait(context.Background(), core.InactiveEvent{Session: c.handle}); err != nil {
		log.Warn("failed to report inactive session", zap.Error(err))
	}
}

func (t *Transport) readLoop(ctx context.Context, c *conn) error {
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			return err
		}
		t.metrics.FrameTransferred(metrics.DirectionIn)
		if !c.allow() {
			t.metrics.FrameDropped("rate_limit")
			c.enqueue(encodeControl(0, frameError, "rate limit exceeded"))
			continue
		}
		if err := t.handleMessage(ctx, c, data); err != nil {
			return err
		}
	}
}

func (t *Transport) handleMessage(ctx context.Context, c *conn, data []byte) error {
	frames, err := splitFrames(data)
	if err != nil {
		t.metrics.FrameDropped("decode")
		c.enqueue(encodeControl(0, frameError, err.Error()))
		return nil
	}
	for _, frame := range frames {
		switch frameType(frame) {
		case framePing:
			c.enqueue(encodeControl(0, framePong, ""))
			continue
		case framePong:
			continue
		}
		token, msg, err := decodeRequest(frame)
		if err != nil {
			t.metrics.FrameDropped("decode")
			c.enqueue(encodeControl(token, frameError, err.Error()))
			continue
		}
		if err := t.poster.PostWait(ctx, core.RequestEvent{Session: c.handle, Token: token, Msg: msg}); err != nil {
			return fmt.Errorf("failed to post request: %w", err)
		}
	}
	return nil
}

func (t *Transport) writeLoop(ctx context.Context, c *conn) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-c.writeCh:
			wctx, cancel := context.WithTimeout(ctx, t.cfg.WriteTimeout)
			err := c.ws.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
			t.metrics.FrameTransferred(metrics.DirectionOut)
		}
	}
}

func (t *Transport) drop(c *conn, code websocket.StatusCode, reason string) {
	t.mu.Lock()
	if t.conns[c.handle] == c {
		delete(t.conns, c.handle)
	}
	t.mu.Unlock()
	c.close(code, reason)
}

func (t *Transport) conn(h omm.Handle) (*conn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.conns[h]
	return c, ok
}

// RegisterClient implements core.Transport.
func (t *Transport) RegisterClient(_ context.Context, h omm.Handle) (omm.Handle, error) {
	c, ok := t.conn(h)
	if !ok {
		return omm.NilHandle, fmt.Errorf("%w: %s", ErrUnknownConnection, h)
	}
	c.active.Store(true)
	return c.handle, nil
}

// UnregisterClient implements core.Transport. It closes the websocket when the
// provider drops a session that is still connected.
func (t *Transport) UnregisterClient(h omm.Handle) {
	c, ok := t.conn(h)
	if !ok {
		return
	}
	c.active.Store(false)
	t.drop(c, websocket.StatusNormalClosure, "session closed")
}

// Submit implements core.Transport. A consumer that cannot keep up is
// disconnected.
func (t *Transport) Submit(_ context.Context, h omm.Handle, token omm.Token, msg *omm.Msg) error {
	c, ok := t.conn(h)
	if !ok || !c.active.Load() || c.closed.Load() {
		return core.ErrTargetGone
	}
	data, err := encodeMsg(token, msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if !c.enqueue(data) {
		t.logger.Warn("slow consumer disconnected", logger.Session(h), zap.Int("buffer", cap(c.writeCh)))
		t.drop(c, websocket.StatusPolicyViolation, "slow consumer")
		return core.ErrTargetGone
	}
	return nil
}

// ScheduleTimer implements core.Transport. fn runs on a timer goroutine.
func (t *Transport) ScheduleTimer(delay time.Duration, repeating bool, fn func()) omm.Handle {
	h := omm.Handle("timer-" + uuid.NewString())
	tm := &timer{}

	t.mu.Lock()
	defer t.mu.Unlock()
	tm.t = time.AfterFunc(delay, func() {
		fn()
		t.mu.Lock()
		defer t.mu.Unlock()
		if !repeating {
			delete(t.timers, h)
			return
		}
		if !tm.stopped {
			tm.t.Reset(delay)
		}
	})
	t.timers[h] = tm
	return h
}

// UnregisterTimer implements core.Transport.
func (t *Transport) UnregisterTimer(h omm.Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tm, ok := t.timers[h]
	if !ok {
		return
	}
	tm.stopped = true
	tm.t.Stop()
	delete(t.timers, h)
}

// TimerCount is the number of scheduled timers.
func (t *Transport) TimerCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.timers)
}

// Close disconnects every consumer and stops every timer.
func (t *Transport) Close() {
	t.mu.Lock()
	conns := make([]*conn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	for h, tm := range t.timers {
		tm.stopped = true
		tm.t.Stop()
		delete(t.timers, h)
	}
	t.mu.Unlock()

	for _, c := range conns {
		t.drop(c, websocket.StatusGoingAway, "provider shutting down")
	}
}

func isNormalClose(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
