// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/ipcdemo/lib/clock"
	"github.com/bureau-foundation/ipcdemo/lib/ipcerr"
	"github.com/bureau-foundation/ipcdemo/lib/ipcmsg"
	"github.com/bureau-foundation/ipcdemo/lib/netutil"
)

// Defaults applied by New to zero Config fields.
const (
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 32000
	DefaultReadTimeout = 30 * time.Second
)

// maxAcceptBackoff caps the pause after consecutive accept failures.
const maxAcceptBackoff = time.Second

// Config configures a Broker.
type Config struct {
	// Host is the listen address. Default: 127.0.0.1.
	Host string

	// Port is the listen port. Zero selects DefaultPort; use
	// EphemeralPort for a kernel-assigned port.
	Port int

	// ReadTimeout bounds the wait for a connection's line.
	// Default: 30s.
	ReadTimeout time.Duration

	// MaxLineBytes caps a line, excluding its terminator.
	// Default: ipcmsg.DefaultMaxLineBytes.
	MaxLineBytes int

	// Registry bounds the connection history.
	Registry RegistryPolicy

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Logger defaults to a discarding logger.
	Logger *slog.Logger

	// Metrics receives the broker's Prometheus collectors. Nil leaves
	// them unregistered.
	Metrics prometheus.Registerer
}

// EphemeralPort as Config.Port asks the kernel for a free port. Read
// the result from Addr.
const EphemeralPort = -1

// Broker accepts one-message connections and publishes what it reads.
type Broker struct {
	config   Config
	clock    clock.Clock
	logger   *slog.Logger
	registry *Registry
	metrics  *metrics
	hub      *hub

	mu       sync.Mutex
	state    State
	closed   bool
	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}

	handlers sync.WaitGroup
}

// New returns a stopped broker.
func New(config Config) *Broker {
	if config.Host == "" {
		config.Host = DefaultHost
	}
	switch {
	case config.Port == 0:
		config.Port = DefaultPort
	case config.Port == EphemeralPort:
		config.Port = 0
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = DefaultReadTimeout
	}
	if config.MaxLineBytes <= 0 {
		config.MaxLineBytes = ipcmsg.DefaultMaxLineBytes
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	broker := &Broker{
		config:   config,
		clock:    config.Clock,
		logger:   config.Logger,
		registry: NewRegistry(config.Registry, config.Clock),
	}
	broker.metrics = newMetrics(config.Metrics, broker.registry)
	broker.hub = newHub(broker.metrics.abandoned.Inc)
	return broker
}

// Start binds the listener and starts accepting. Bind failures are
// returned as transport errors. The broker stops when ctx is canceled
// or Stop is called.
func (b *Broker) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if b.state != StateStopped {
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	b.state = StateStarting
	b.mu.Unlock()

	address := net.JoinHostPort(b.config.Host, strconv.Itoa(b.config.Port))
	var listenConfig net.ListenConfig
	listener, err := listenConfig.Listen(ctx, "tcp", address)
	if err != nil {
		b.setState(StateStopped)
		return ipcerr.Transport("listen", fmt.Errorf("listening on %s: %w", address, err))
	}

	runContext, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	b.mu.Lock()
	if b.closed {
		b.state = StateStopped
		b.mu.Unlock()
		cancel()
		listener.Close()
		return ErrClosed
	}
	b.state = StateListening
	b.listener = listener
	b.cancel = cancel
	b.done = done
	b.mu.Unlock()

	b.logger.Info("broker listening", "address", listener.Addr().String())
	go b.serve(runContext, listener, done)
	return nil
}

// Stop shuts the broker down and waits for in-flight connections to
// finish. Subscriptions stay open, and the broker can be started again.
func (b *Broker) Stop() error {
	b.mu.Lock()
	if b.state != StateListening {
		b.mu.Unlock()
		return ErrNotRunning
	}
	b.state = StateStopping
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Close stops the broker if it is running and closes every
// subscription. A closed broker cannot be started.
func (b *Broker) Close() error {
	err := b.Stop()
	if errors.Is(err, ErrNotRunning) {
		err = nil
	}
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.hub.close()
	return err
}

// State returns the current lifecycle state.
func (b *Broker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Addr returns the bound address, or nil when not listening.
func (b *Broker) Addr() net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// ConnectionHistory returns a snapshot of client endpoints and when
// each first connected.
func (b *Broker) ConnectionHistory() map[string]time.Time {
	return b.registry.Snapshot()
}

// Subscribe returns a new subscription with the given channel
// capacity. A non-positive buffer selects DefaultSubscriptionBuffer.
func (b *Broker) Subscribe(buffer int) *Subscription {
	return b.hub.subscribe(buffer)
}

// Observe drives observer from a dedicated goroutine until the returned
// stop function is called or the broker is closed. stop waits for an
// in-progress callback to return, so it must not be called from inside
// one.
func (b *Broker) Observe(observer Observer) (stop func()) {
	subscription := b.Subscribe(0)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for event := range subscription.Events() {
			Dispatch(observer, event)
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			subscription.Close()
			<-finished
		})
	}
}

func (b *Broker) setState(state State) {
	b.mu.Lock()
	b.state = state
	b.mu.Unlock()
}

// serve runs the accept loop until ctx is canceled, then waits for the
// handlers and marks the broker stopped.
func (b *Broker) serve(ctx context.Context, listener net.Listener, done chan struct{}) {
	stopClosing := context.AfterFunc(ctx, func() { listener.Close() })
	defer func() {
		stopClosing()
		listener.Close()
		b.handlers.Wait()

		b.mu.Lock()
		b.state = StateStopped
		b.listener = nil
		cancel := b.cancel
		b.cancel = nil
		b.mu.Unlock()
		cancel()

		b.logger.Info("broker stopped")
		close(done)
	}()

	var backoff time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			backoff = min(max(2*backoff, 5*time.Millisecond), maxAcceptBackoff)
			b.logger.Warn("accept failed", "error", err, "retry_in", backoff)
			b.emitError(ctx, "", ipcerr.Transport("accept", err))
			select {
			case <-ctx.Done():
				return
			case <-b.clock.After(backoff):
			}
			continue
		}
		backoff = 0
		b.metrics.accepted.Inc()

		endpoint := conn.RemoteAddr().String()
		if _, added := b.registry.Record(endpoint); added {
			b.logger.Debug("new client endpoint", "endpoint", endpoint)
		}

		b.handlers.Add(1)
		go func() {
			defer b.handlers.Done()
			b.handle(ctx, conn, endpoint)
		}()
	}
}

var (
	errNoData      = errors.New("client sent no data")
	errLineTooLong = errors.New("line too long")
)

// handle reads and publishes the connection's single line.
func (b *Broker) handle(ctx context.Context, conn net.Conn, endpoint string) {
	started := b.clock.Now()
	b.metrics.active.Inc()
	defer func() {
		conn.Close()
		b.metrics.active.Dec()
		b.metrics.handleSeconds.Observe(b.clock.Now().Sub(started).Seconds())
	}()

	conn.SetReadDeadline(time.Now().Add(b.config.ReadTimeout))
	// A deadline in the past wakes a read blocked at shutdown.
	stopWaking := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Unix(1, 0)) })
	defer stopWaking()

	line, err := readLine(conn, b.config.MaxLineBytes)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		b.logger.Debug("connection abandoned at shutdown", "endpoint", endpoint)
		return
	case errors.Is(err, errNoData):
		b.emitError(ctx, endpoint, ipcerr.Transport("read", err))
		return
	case errors.Is(err, errLineTooLong):
		b.emitError(ctx, endpoint, ipcerr.Protocol("read", "line exceeds %d bytes", b.config.MaxLineBytes))
		return
	case netutil.IsExpectedCloseError(err):
		b.emitError(ctx, endpoint, ipcerr.Transport("read", fmt.Errorf("connection closed before a complete line: %w", err)))
		return
	case netutil.IsTimeout(err):
		b.emitError(ctx, endpoint, ipcerr.IO("read", fmt.Errorf("no complete line within %s: %w", b.config.ReadTimeout, err)))
		return
	default:
		b.emitError(ctx, endpoint, ipcerr.IO("read", err))
		return
	}

	b.metrics.lines.Inc()
	b.publish(ctx, Event{Kind: EventLine, Endpoint: endpoint, Line: string(line)})

	message, err := ipcmsg.Decode(line)
	if err != nil {
		b.emitError(ctx, endpoint, err)
		return
	}
	b.metrics.messages.Inc()
	b.logger.Debug("message received",
		"endpoint", endpoint,
		"type", message.Type,
		"sender", message.Sender,
	)
	b.publish(ctx, Event{Kind: EventMessage, Endpoint: endpoint, Message: message})
}

// readLine reads one line of at most limit bytes, returning it without
// its "\n" or "\r\n" terminator. A final line without a terminator is
// accepted when the peer closes after it.
func readLine(conn io.Reader, limit int) ([]byte, error) {
	// Room for the body and a two-byte terminator.
	reader := bufio.NewReader(io.LimitReader(conn, int64(limit)+2))
	line, err := reader.ReadBytes('\n')
	switch {
	case err == nil:
	case errors.Is(err, io.EOF) && len(line) == 0:
		return nil, errNoData
	case errors.Is(err, io.EOF):
	default:
		return nil, err
	}
	line = bytes.TrimRight(line, "\r\n")
	if len(line) > limit {
		return nil, errLineTooLong
	}
	return line, nil
}

func (b *Broker) emitError(ctx context.Context, endpoint string, err error) {
	b.metrics.recordError(err)
	b.logger.Debug("connection error", "endpoint", endpoint, "error", err)
	b.publish(ctx, Event{Kind: EventError, Endpoint: endpoint, Err: err})
}

// publish blocks until every subscriber has the event. ctx is the
// broker's run context, so Stop releases handlers waiting on a
// subscriber that stopped reading.
func (b *Broker) publish(ctx context.Context, event Event) {
	event.At = b.clock.Now()
	b.hub.publish(ctx, event)
}
