package backoffice

import (
	"errors"
	"time"

	internalaudit "github.com/lendkit/backoffice/internal/audit"
	internalevents "github.com/lendkit/backoffice/internal/events"
	internalmetrics "github.com/lendkit/backoffice/internal/metrics"
	"github.com/lendkit/backoffice/store"
	"github.com/lendkit/backoffice/token"
)

// Builder defines a public type used by backoffice APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config

	tokenStore store.TokenStore
	snapshots  store.SnapshotStore
	bus        *Bus
	auditSink  AuditSink
	metrics    *Metrics

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore describes the withstore operation and its observable behavior.
//
// WithStore may return an error when input validation, dependency calls, or security checks fail.
// WithStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithStore(ts store.TokenStore) *Builder {
	b.tokenStore = ts
	return b
}

// WithSnapshots describes the withsnapshots operation and its observable behavior.
//
// WithSnapshots may return an error when input validation, dependency calls, or security checks fail.
// WithSnapshots does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithSnapshots(ss store.SnapshotStore) *Builder {
	b.snapshots = ss
	return b
}

// WithBus describes the withbus operation and its observable behavior.
//
// WithBus may return an error when input validation, dependency calls, or security checks fail.
// WithBus does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithBus(bus *Bus) *Builder {
	b.bus = bus
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetrics describes the withmetrics operation and its observable behavior.
//
// WithMetrics may return an error when input validation, dependency calls, or security checks fail.
// WithMetrics does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetrics(m *Metrics) *Builder {
	b.metrics = m
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Coordinator, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- STORES --------
	tokenStore := b.tokenStore
	if tokenStore == nil {
		tokenStore = store.NewMemory()
	}

	snapshots := b.snapshots
	if snapshots == nil {
		// The bundled backends persist both concerns; reuse the token
		// store when it does.
		if ss, ok := tokenStore.(store.SnapshotStore); ok {
			snapshots = ss
		}
	}

	// -------- EVENT BUS --------
	bus := b.bus
	busOwned := false
	if bus == nil {
		bus = internalevents.NewBus(internalevents.Config{
			SubscriberBuffer: cfg.Bus.SubscriberBuffer,
			BacklogLimit:     cfg.Bus.BacklogLimit,
			DedupeWindow:     cfg.Bus.DedupeWindow,
		})
		busOwned = true
	}

	// -------- TOKEN PARSER --------
	parser, err := token.NewParser(token.Config{
		VerifyMode: token.VerifyMode(cfg.Token.VerifyMethod),
		Key:        cloneBytes(cfg.Token.VerifyKey),
		VerifyKeys: cfg.Token.VerifyKeys,
		Issuer:     cfg.Token.Issuer,
		Audience:   cfg.Token.Audience,
		Leeway:     cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	coordinator := &Coordinator{
		config:    cloneConfig(cfg),
		store:     tokenStore,
		snaps:     snapshots,
		bus:       bus,
		busOwned:  busOwned,
		parser:    parser,
		now:       time.Now,
		newTicker: newWallTicker,
		warnSubs:  map[uint64]*warningSub{},
		endSubs:   map[uint64]*endSub{},
	}

	coordinator.metrics = b.metrics
	if coordinator.metrics == nil {
		coordinator.metrics = internalmetrics.NewEngine(internalmetrics.Config{
			Enabled:       cfg.Metrics.Enabled,
			EnableLatency: cfg.Metrics.EnableLatencyHistograms,
		})
	}
	coordinator.journal = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true

	return coordinator, nil
}
