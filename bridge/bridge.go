// Package bridge drives request/response exchanges with an external wallet
// service over an asynchronous message channel.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/layer-3/walletauth/ports"
	"go.uber.org/zap"
)

// Bridge executes service requests, one channel per request
type Bridge struct {
	opener        ports.ChannelOpener
	announcements []Announcement
	logger        *zap.Logger
}

// Option configures a Bridge
type Option func(*Bridge)

// WithAnnouncements replaces the announcement builders
func WithAnnouncements(announcements ...Announcement) Option {
	return func(b *Bridge) {
		b.announcements = announcements
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// New creates a new bridge opening channels with opener
func New(opener ports.ChannelOpener, opts ...Option) *Bridge {
	b := &Bridge{
		opener:        opener,
		announcements: DefaultAnnouncements,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Execute performs req and blocks until it settles. It returns the approved
// data, a *core.DeclinedError, or an error matching core.ErrExternallyHalted
// when the channel closes or ctx is done first.
//
// An approved redirect mode request leaves the channel open until ctx is
// done. Use ExecuteRedirect to release it earlier.
func (b *Bridge) Execute(ctx context.Context, req Request) (json.RawMessage, error) {
	data, release, err := b.execute(ctx, req)
	if release != nil {
		context.AfterFunc(ctx, release)
	}
	return data, err
}

// ExecuteRedirect is Execute for callers that own the channel an approved
// redirect mode request leaves open. release closes it and is safe to call
// more than once. It is never nil and is a no-op when nothing was left open.
func (b *Bridge) ExecuteRedirect(ctx context.Context, req Request) (json.RawMessage, func(), error) {
	data, release, err := b.execute(ctx, req)
	if release == nil {
		release = func() {}
	}
	return data, release, err
}

// execute runs req to settlement. release is nil unless the channel was
// left open.
func (b *Bridge) execute(ctx context.Context, req Request) (data json.RawMessage, release func(), err error) {
	pending := NewPendingRequest(req.RedirectMode)
	logger := b.logger.With(
		zap.String("request_id", pending.ID()),
		zap.String("endpoint", req.Service.Endpoint),
	)

	queue := newEventQueue()
	ch, err := b.opener.Open(ctx, req.Service.Endpoint, ports.ChannelHandlers{
		OnReady:   func() { queue.push(event{kind: eventReady}) },
		OnMessage: func(data json.RawMessage) { queue.push(event{kind: eventMessage, data: data}) },
		OnClose:   func() { queue.push(event{kind: eventClose}) },
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	for !pending.Settled() {
		select {
		case <-ctx.Done():
			pending.Halt(ctx.Err())
			b.close(ch, logger)

		case <-queue.signal:
			for _, e := range queue.drain() {
				if pending.Settled() {
					break
				}
				b.handle(ctx, ch, pending, req, e, logger)
			}
		}
	}

	logger.Debug("service request settled", zap.Stringer("outcome", pending.Outcome()))

	if req.RedirectMode && pending.Outcome() == OutcomeApproved {
		var once sync.Once
		release = func() {
			once.Do(func() {
				logger.Debug("releasing redirect channel")
				b.close(ch, logger)
			})
		}
	}

	data, err = pending.Result()
	return data, release, err
}

func (b *Bridge) handle(ctx context.Context, ch ports.Channel, pending *PendingRequest, req Request, e event, logger *zap.Logger) {
	switch e.kind {
	case eventReady:
		if err := b.announce(ctx, ch, pending.ID(), &req); err != nil {
			logger.Warn("announcement failed", zap.Error(err))
			pending.Fail(err)
			b.close(ch, logger)
		}

	case eventMessage:
		settled, closeChannel := pending.HandleMessage(e.data)
		if !settled {
			logger.Debug("ignoring unrelated message")
			return
		}
		if closeChannel {
			b.close(ch, logger)
		}

	case eventClose:
		pending.HandleClose()
	}
}

// announce sends every announcement in order
func (b *Bridge) announce(ctx context.Context, ch ports.Channel, requestID string, req *Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("announcement panicked: %v", r)
		}
	}()

	for i, build := range b.announcements {
		msg, err := build(requestID, req)
		if err != nil {
			return fmt.Errorf("failed to build announcement %d: %w", i, err)
		}
		if err := ch.Send(ctx, msg); err != nil {
			return fmt.Errorf("failed to send announcement %d: %w", i, err)
		}
	}
	return nil
}

func (b *Bridge) close(ch ports.Channel, logger *zap.Logger) {
	if err := ch.Close(); err != nil {
		logger.Debug("failed to close channel", zap.Error(err))
	}
}

type eventKind int

const (
	eventReady eventKind = iota
	eventMessage
	eventClose
)

type event struct {
	kind eventKind
	data json.RawMessage
}

// eventQueue buffers channel events without ever blocking the producer
type eventQueue struct {
	mu     sync.Mutex
	items  []event
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{signal: make(chan struct{}, 1)}
}

func (q *eventQueue) push(e event) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []event {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}
