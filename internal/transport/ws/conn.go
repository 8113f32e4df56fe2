package ws

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/amoylab/mdprovider/pkg/omm"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"
)

// conn is one accepted websocket. Writes go through writeCh so Submit never
// blocks the dispatch goroutine.
type conn struct {
	handle     omm.Handle
	remoteAddr string
	ws         *websocket.Conn
	writeCh    chan []byte
	limiter    *rate.Limiter
	active     atomic.Bool
	closed     atomic.Bool
	closeOnce  sync.Once
	cancel     context.CancelFunc
}

// enqueue hands data to the write loop. It reports false when the buffer is
// full or the connection is closed.
func (c *conn) enqueue(data []byte) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.writeCh <- data:
		return true
	default:
		return false
	}
}

// allow applies the inbound rate limit, if any.
func (c *conn) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

// close starts the close handshake without waiting for the peer, so it is
// safe to call from the dispatch goroutine.
func (c *conn) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		go func() {
			_ = c.ws.Close(code, reason)
			c.cancel()
		}()
	})
}
