// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/bureau-foundation/ipcdemo/lib/clock"
	"github.com/bureau-foundation/ipcdemo/lib/ipcerr"
	"github.com/bureau-foundation/ipcdemo/lib/ipcmsg"
)

// Defaults applied by New to zero Config fields.
const (
	DefaultHost         = "127.0.0.1"
	DefaultPort         = 32000
	DefaultDialTimeout  = 5 * time.Second
	DefaultWriteTimeout = 5 * time.Second
)

// CodeSource supplies the current secure code. *securecode.Generator
// satisfies it.
type CodeSource interface {
	Code() (string, error)
}

// DialFunc opens a connection, as net.Dialer.DialContext does.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Config configures a Sender.
type Config struct {
	// Host and Port address the broker. Defaults: 127.0.0.1:32000.
	Host string
	Port int

	// Name is the default Sender field. Default: os.Hostname().
	Name string

	// Codes produces the Secret field when a Request has no Code.
	Codes CodeSource

	// DialTimeout bounds connection setup. Default: 5s.
	DialTimeout time.Duration

	// WriteTimeout bounds writing the line. Default: 5s.
	WriteTimeout time.Duration

	// BreakerThreshold is passed to NewBreaker.
	BreakerThreshold int

	// OnTrip runs once when the breaker trips, on the goroutine whose
	// Send tripped it.
	OnTrip func(Trip)

	// Dial overrides how connections are opened.
	Dial DialFunc

	Clock  clock.Clock
	Logger *slog.Logger
}

// Request is one message to send.
type Request struct {
	// Type defaults to ipcmsg.TypeData.
	Type    string
	Payload string

	// Sender overrides Config.Name.
	Sender string

	// Code overrides Config.Codes.
	Code string
}

// Receipt describes a delivered message.
type Receipt struct {
	// Message is what was written, including the code.
	Message ipcmsg.Message

	// Local is the client endpoint the broker saw.
	Local string

	// Bytes is the length of the line written.
	Bytes int

	// Elapsed covers dial, write, and close.
	Elapsed time.Duration
}

// Sender publishes messages to one broker.
type Sender struct {
	address      string
	name         string
	codes        CodeSource
	writeTimeout time.Duration
	dial         DialFunc
	breaker      *Breaker
	clock        clock.Clock
	logger       *slog.Logger
}

// New validates config and returns a Sender.
func New(config Config) (*Sender, error) {
	if config.Host == "" {
		config.Host = DefaultHost
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Port < 1 || config.Port > 65535 {
		return nil, fmt.Errorf("sender: port %d out of range", config.Port)
	}
	if config.Name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("sender: no name configured and host name unavailable: %w", err)
		}
		config.Name = hostname
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = DefaultDialTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.Dial == nil {
		dialer := &net.Dialer{Timeout: config.DialTimeout}
		config.Dial = dialer.DialContext
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	return &Sender{
		address:      net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
		name:         config.Name,
		codes:        config.Codes,
		writeTimeout: config.WriteTimeout,
		dial:         config.Dial,
		breaker:      NewBreaker(config.BreakerThreshold, config.OnTrip),
		clock:        config.Clock,
		logger:       config.Logger,
	}, nil
}

// Address returns the broker address.
func (s *Sender) Address() string { return s.address }

// Name returns the default Sender field.
func (s *Sender) Name() string { return s.name }

// Breaker returns the sender's circuit breaker.
func (s *Sender) Breaker() *Breaker { return s.breaker }

// Send delivers one message over a new connection. Dial failures are
// transport errors and write failures are io errors; both count
// against the breaker. Cancellation through ctx is returned as is and
// not counted.
func (s *Sender) Send(ctx context.Context, request Request) (Receipt, error) {
	if err := s.breaker.Allow(); err != nil {
		return Receipt{}, err
	}

	started := s.clock.Now()
	message, err := s.message(request, started)
	if err != nil {
		return Receipt{}, err
	}
	line, err := ipcmsg.Encode(message)
	if err != nil {
		return Receipt{}, err
	}

	conn, err := s.dial(ctx, "tcp", s.address)
	if err != nil {
		if ctx.Err() != nil {
			return Receipt{}, fmt.Errorf("sender: dialing %s: %w", s.address, ctx.Err())
		}
		return Receipt{}, s.fail(ipcerr.Transport("dial", fmt.Errorf("%s: %w", s.address, err)))
	}
	local := conn.LocalAddr().String()

	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	written, writeErr := conn.Write(line)
	closeErr := conn.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		return Receipt{}, s.fail(ipcerr.IO("write", fmt.Errorf("%s after %d of %d bytes: %w", s.address, written, len(line), err)))
	}

	receipt := Receipt{
		Message: message,
		Local:   local,
		Bytes:   written,
		Elapsed: s.clock.Now().Sub(started),
	}
	s.logger.Debug("message sent",
		"address", s.address,
		"local", local,
		"type", message.Type,
		"bytes", written,
		"elapsed", receipt.Elapsed,
	)
	return receipt, nil
}

// Go starts Send on a new goroutine.
func (s *Sender) Go(ctx context.Context, request Request) *Pending {
	pending := &Pending{done: make(chan struct{})}
	go func() {
		defer close(pending.done)
		pending.receipt, pending.err = s.Send(ctx, request)
	}()
	return pending
}

func (s *Sender) message(request Request, now time.Time) (ipcmsg.Message, error) {
	message := ipcmsg.Message{
		Type:    request.Type,
		Payload: request.Payload,
		Time:    ipcmsg.Stamp(now),
		Sender:  request.Sender,
		Secret:  request.Code,
	}
	if message.Type == "" {
		message.Type = ipcmsg.TypeData
	}
	if message.Sender == "" {
		message.Sender = s.name
	}
	if message.Secret == "" && s.codes != nil {
		code, err := s.codes.Code()
		if err != nil {
			return ipcmsg.Message{}, fmt.Errorf("sender: generating code: %w", err)
		}
		message.Secret = code
	}
	return message, nil
}

func (s *Sender) fail(err error) error {
	reported := s.breaker.Record(err, s.clock.Now())
	transport, io := s.breaker.Counts()
	s.logger.Warn("send failed",
		"error", err,
		"transport_failures", transport,
		"io_failures", io,
	)
	return reported
}

// Pending is the result of a Send started by Go.
type Pending struct {
	done    chan struct{}
	receipt Receipt
	err     error
}

// Done is closed when the send has finished.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the send finishes or ctx is done.
func (p *Pending) Wait(ctx context.Context) (Receipt, error) {
	select {
	case <-p.done:
		return p.receipt, p.err
	case <-ctx.Done():
		return Receipt{}, fmt.Errorf("waiting for send: %w", ctx.Err())
	}
}
