package chat

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/spark200410/consultancy/internal/metrics"
	redisclient "github.com/spark200410/consultancy/internal/redis"
)

// Registry keeps one widget per portal session. Widgets idle past the TTL
// or pushed out by size are torn down.
type Registry struct {
	widgets   *expirable.LRU[string, *Widget]
	responder Responder
	locker    Locker
	device    Device
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	mu        sync.Mutex
}

type RegistryOptions struct {
	Responder Responder
	Locker    Locker // nil means a process local lock
	Device    Device
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
	Size      int
	TTL       time.Duration
}

func NewRegistry(opts RegistryOptions) *Registry {
	if opts.Locker == nil {
		opts.Locker = NewLocalLocker()
	}
	if opts.Device == nil {
		opts.Device = NewBufferDevice(0, opts.Metrics)
	}
	if opts.Size <= 0 {
		opts.Size = 10000
	}
	if opts.TTL <= 0 {
		opts.TTL = 12 * time.Hour
	}

	r := &Registry{
		responder: opts.Responder,
		locker:    opts.Locker,
		device:    opts.Device,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
	r.widgets = expirable.NewLRU[string, *Widget](opts.Size, func(sessionID string, w *Widget) {
		w.Teardown()
	}, opts.TTL)
	return r
}

// Widget returns the session's widget, mounting a new one with a fresh
// conversation id on first use.
func (r *Registry) Widget(sessionID string) *Widget {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.widgets.Get(sessionID); ok {
		return w
	}
	w := newWidget(r.responder, r.locker, r.device, r.metrics, r.logger.With().Str("session", shortID(sessionID)).Logger())
	r.widgets.Add(sessionID, w)
	r.metrics.SetActiveWidgets(r.Len())
	return w
}

// Teardown disposes the session's widget, if any.
func (r *Registry) Teardown(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.widgets.Remove(sessionID)
	r.metrics.SetActiveWidgets(r.Len())
}

// Len counts mounted widgets. Widgets expired by ttl are only reflected in
// the gauge on the next mount or teardown.
func (r *Registry) Len() int {
	return r.widgets.Len()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// LocalLocker is the single replica fallback when Redis is not configured.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) WithConversationLock(ctx context.Context, conversationID string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if _, busy := l.held[conversationID]; busy {
		l.mu.Unlock()
		return redisclient.ErrLockNotAcquired
	}
	l.held[conversationID] = struct{}{}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, conversationID)
		l.mu.Unlock()
	}()
	return fn(ctx)
}
