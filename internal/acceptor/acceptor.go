// Package acceptor serves delay decisions over TCP. Each inbound connection
// receives one decision, written as text, and is then closed. Nothing is read
// from the client.
package acceptor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jarlhq/jarl/internal/metrics"
	"github.com/jarlhq/jarl/internal/observability"
	"github.com/jarlhq/jarl/internal/window"
)

// Accept retry backoff, same bounds net/http uses.
const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Closing with unread client bytes resets the connection and can drop the
// reply. After writing, at most drainLimit bytes are discarded for at most
// drainTimeout.
const (
	drainTimeout = time.Second
	drainLimit   = 4096
)

var (
	// ErrAlreadyServing is returned when Serve is called twice.
	ErrAlreadyServing = errors.New("acceptor is already serving")

	// ErrNotServing is reported by CheckHealth when the accept loop is not running.
	ErrNotServing = errors.New("accept loop is not running")
)

// Decider records an arrival and returns its delay decision.
type Decider interface {
	Decide() window.Decision
}

// Option configures an Acceptor.
type Option func(*Acceptor)

// WithLogger overrides the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(a *Acceptor) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithWriteTimeout bounds how long a slow client may hold a writer goroutine.
// Zero means no deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(a *Acceptor) {
		a.writeTimeout = d
	}
}

// WithDecisionHook registers fn to run on the accept goroutine after each decision.
func WithDecisionHook(fn func(window.Decision)) Option {
	return func(a *Acceptor) {
		a.onDecision = fn
	}
}

// Acceptor owns the delay listener.
type Acceptor struct {
	listener     net.Listener
	decider      Decider
	logger       *logging.Logger
	writeTimeout time.Duration
	onDecision   func(window.Decision)

	started  atomic.Bool
	running  atomic.Bool
	closing  atomic.Bool
	inflight atomic.Int64
	writers  sync.WaitGroup
	closeErr error
	closeMu  sync.Once
}

// Listen binds a TCP listener on addr and wraps it in an Acceptor.
func Listen(ctx context.Context, addr string, decider Decider, opts ...Option) (*Acceptor, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return New(ln, decider, opts...), nil
}

// New wraps an already bound listener.
func New(listener net.Listener, decider Decider, opts ...Option) *Acceptor {
	a := &Acceptor{
		listener: listener,
		decider:  decider,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = observability.Logger()
	}
	return a
}

// Addr returns the listener address.
func (a *Acceptor) Addr() net.Addr {
	return a.listener.Addr()
}

// Serve runs the accept loop until ctx is cancelled or Close is called, then
// returns nil. Accept failures are logged and retried, never returned.
func (a *Acceptor) Serve(ctx context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAlreadyServing
	}

	a.running.Store(true)
	defer a.running.Store(false)

	stop := context.AfterFunc(ctx, func() {
		_ = a.Close()
	})
	defer stop()

	a.logger.Info("Accepting delay requests", zap.String("addr", a.Addr().String()))

	var backoff time.Duration
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if a.closing.Load() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("listener closed unexpectedly: %w", err)
			}

			backoff = nextBackoff(backoff)
			a.logAcceptError(err, backoff)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		backoff = 0

		a.dispatch(conn)
	}
}

// dispatch decides on the accept goroutine so decision order is acceptance
// order, then hands the write to its own goroutine.
func (a *Acceptor) dispatch(conn net.Conn) {
	d := a.decider.Decide()
	metrics.RecordDecision(d)
	if a.onDecision != nil {
		a.onDecision(d)
	}

	a.writers.Add(1)
	metrics.SetInFlightWrites(a.inflight.Add(1))
	go func() {
		defer a.writers.Done()
		defer func() { metrics.SetInFlightWrites(a.inflight.Add(-1)) }()
		a.deliver(conn, d)
	}()
}

func (a *Acceptor) deliver(conn net.Conn, d window.Decision) {
	connID := uuid.New().String()
	payload := d.String()

	a.logger.Debug("Delay decided",
		zap.String("conn_id", connID),
		zap.String("remote", remoteAddr(conn)),
		zap.Uint64("seq", d.Seq),
		zap.String("delay", payload),
		zap.Int("overflow", d.Overflow),
		zap.Int("window_len", d.WindowLen))

	if a.writeTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(a.writeTimeout))
	}

	if _, err := io.WriteString(conn, payload); err != nil {
		metrics.RecordWriteError("write")
		a.logger.Debug("Delay not delivered",
			zap.String("conn_id", connID),
			zap.Uint64("seq", d.Seq),
			zap.Error(err))
	} else {
		drain(conn)
	}

	if err := conn.Close(); err != nil {
		metrics.RecordWriteError("close")
		a.logger.Debug("Connection close failed",
			zap.String("conn_id", connID),
			zap.Error(err))
	}
}

// drain sends FIN after the reply and discards what the client sent.
func drain(conn net.Conn) {
	hc, ok := conn.(interface{ CloseWrite() error })
	if !ok {
		return
	}
	if err := hc.CloseWrite(); err != nil {
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(drainTimeout))
	_, _ = io.Copy(io.Discard, io.LimitReader(conn, drainLimit))
}

func (a *Acceptor) logAcceptError(err error, backoff time.Duration) {
	var netErr net.Error
	temporary := errors.As(err, &netErr) && netErr.Timeout()
	metrics.RecordAcceptError(temporary)

	a.logger.Warn("Accept failed; retrying",
		zap.Error(err),
		zap.Duration("backoff", backoff))
}

// Close stops accepting. In-flight writes continue; use Wait for them.
func (a *Acceptor) Close() error {
	a.closeMu.Do(func() {
		a.closing.Store(true)
		a.closeErr = a.listener.Close()
	})
	return a.closeErr
}

// Wait blocks until every in-flight write has finished.
func (a *Acceptor) Wait() {
	a.writers.Wait()
}

// CheckHealth reports ErrNotServing unless the accept loop is running.
func (a *Acceptor) CheckHealth(ctx context.Context) error {
	if !a.running.Load() || a.closing.Load() {
		return ErrNotServing
	}
	return nil
}

func nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return minAcceptBackoff
	}
	current *= 2
	if current > maxAcceptBackoff {
		return maxAcceptBackoff
	}
	return current
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
