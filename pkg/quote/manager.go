package quote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"moleswap/pkg/metrics"
	"moleswap/pkg/relay"
	"moleswap/pkg/types"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultTTL             = 30 * time.Second
	DefaultRefreshInterval = 25 * time.Second
)

// MismatchWarning is surfaced when the aggregator rejects a user/recipient pair.
const MismatchWarning = "user and recipient must match for this swap; using the wallet address as recipient"

// State is the quote lifecycle state
type State int

const (
	StateIdle State = iota
	StateFetching
	StateFresh
	StateStale
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Fetcher requests quotes from the aggregator
type Fetcher interface {
	GetQuote(ctx context.Context, req types.QuoteRequest) (*types.Quote, error)
}

// Snapshot is a point-in-time view of the manager
type Snapshot struct {
	State      State
	Request    types.QuoteRequest
	Quote      *types.Quote
	UpdatedAt  time.Time
	TTLLeft    time.Duration
	Refreshing bool
	Warning    string
	Err        error
}

// Option configures a Manager
type Option func(*Manager)

func WithTTL(d time.Duration) Option {
	return func(m *Manager) { m.ttl = d }
}

func WithRefreshInterval(d time.Duration) Option {
	return func(m *Manager) { m.interval = d }
}

// WithMinInterval spaces consecutive fetches at least d apart
func WithMinInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

func WithLogger(l *logrus.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// Manager owns the quote for the current swap request. It refreshes the quote
// on a fixed interval and reports staleness against a fixed TTL.
type Manager struct {
	fetcher  Fetcher
	ttl      time.Duration
	interval time.Duration
	limiter  *rate.Limiter
	logger   *logrus.Logger
	now      func() time.Time
	metrics  *metrics.Metrics

	mu        sync.Mutex
	req       types.QuoteRequest
	valid     bool
	gen       uint64
	seq       uint64
	inflight  int
	quote     *types.Quote
	updatedAt time.Time
	warning   string
	err       error
	cancel    context.CancelFunc
	subs      []func(Snapshot)
	wg        sync.WaitGroup
}

// NewManager creates a manager over fetcher
func NewManager(fetcher Fetcher, opts ...Option) *Manager {
	m := &Manager{
		fetcher:  fetcher,
		ttl:      DefaultTTL,
		interval: DefaultRefreshInterval,
		logger:   logrus.StandardLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.interval <= 0 || m.interval > m.ttl {
		m.interval = m.ttl
	}
	return m
}

// TTL returns the freshness window
func (m *Manager) TTL() time.Duration { return m.ttl }

// Subscribe registers fn to receive a snapshot on every transition and TTL tick
func (m *Manager) Subscribe(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Update replaces the swap request. Any change drops the current quote and
// stops both timers; a quotable request starts them again. ctx bounds the
// refresh loop.
func (m *Manager) Update(ctx context.Context, sel types.SwapRequest) bool {
	req, ok := BuildRequest(sel)

	m.mu.Lock()
	if ok && m.valid && req == m.req && m.cancel != nil {
		m.mu.Unlock()
		return true
	}

	m.stopLocked()
	m.gen++
	m.req = req
	m.valid = ok
	m.inflight = 0
	m.quote = nil
	m.updatedAt = time.Time{}
	m.warning = ""
	m.err = nil

	if ok {
		loopCtx, cancel := context.WithCancel(ctx)
		m.cancel = cancel
		gen := m.gen
		m.wg.Add(2)
		go m.refreshLoop(loopCtx, gen, req)
		go m.ttlLoop(loopCtx)
	}
	snap := m.snapshotLocked(m.now())
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{"valid": ok, "origin": req.OriginChainID, "destination": req.DestinationChainID}).Debug("Quote request updated")
	m.notify(snap)
	return ok
}

// Refresh fetches a new quote for the current request now
func (m *Manager) Refresh(ctx context.Context) {
	m.mu.Lock()
	if !m.valid || m.cancel == nil {
		m.mu.Unlock()
		return
	}
	gen, req := m.gen, m.req
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		m.fetch(ctx, gen, req)
	}()
}

// Stop cancels both timers and ignores fetches still in flight. The last
// quote stays readable.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopLocked()
	m.gen++
	m.inflight = 0
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Manager) stopLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// Snapshot reports the manager's state as of now
func (m *Manager) Snapshot(now time.Time) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(now)
}

// Current returns the quote if it is fresh as of now
func (m *Manager) Current(now time.Time) (*types.Quote, bool) {
	snap := m.Snapshot(now)
	return snap.Quote, snap.State == StateFresh
}

func (m *Manager) snapshotLocked(now time.Time) Snapshot {
	snap := Snapshot{
		Request:    m.req,
		Quote:      m.quote,
		UpdatedAt:  m.updatedAt,
		Refreshing: m.inflight > 0,
		Warning:    m.warning,
		Err:        m.err,
	}

	switch {
	case !m.valid:
		snap.State = StateIdle
	case m.quote == nil && m.inflight > 0:
		snap.State = StateFetching
	case m.quote == nil:
		snap.State = StateIdle
	default:
		expires := m.updatedAt.Add(m.ttl)
		if now.Before(expires) {
			snap.State = StateFresh
			snap.TTLLeft = expires.Sub(now)
		} else {
			snap.State = StateStale
		}
	}
	return snap
}

func (m *Manager) refreshLoop(ctx context.Context, gen uint64, req types.QuoteRequest) {
	defer m.wg.Done()

	m.fetch(ctx, gen, req)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				m.fetch(ctx, gen, req)
			}()
		}
	}
}

func (m *Manager) ttlLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.notify(m.Snapshot(m.now()))
		}
	}
}

// fetch requests a quote and applies it only if no newer fetch was issued
// since and the request is unchanged.
func (m *Manager) fetch(ctx context.Context, gen uint64, req types.QuoteRequest) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.seq++
	seq := m.seq
	m.inflight++
	snap := m.snapshotLocked(m.now())
	m.mu.Unlock()
	m.notify(snap)

	log := m.logger.WithFields(logrus.Fields{"seq": seq, "origin": req.OriginChainID, "destination": req.DestinationChainID})

	started := time.Now()
	var q *types.Quote
	err := m.wait(ctx)
	if err == nil {
		// a request may not outlive the refresh that replaces it
		fetchCtx, cancel := context.WithTimeout(ctx, m.interval)
		q, err = m.fetcher.GetQuote(fetchCtx, req)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("quote request timed out after %s: %w", m.interval, err)
		}
	}
	elapsed := time.Since(started)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		log.Debug("Discarding quote for a replaced request")
		return
	}
	m.inflight--
	if seq != m.seq {
		m.mu.Unlock()
		log.Debug("Discarding superseded quote")
		return
	}

	switch {
	case err == nil:
		m.quote = q
		m.updatedAt = m.now()
		m.warning = ""
		m.err = nil
		m.metrics.ObserveQuote(metrics.ResultSuccess, elapsed)
		log.WithField("expected_output", q.ExpectedOutput).Debug("Quote received")
	case relay.IsRecipientMismatch(err):
		m.quote = nil
		m.updatedAt = time.Time{}
		m.warning = MismatchWarning
		m.err = nil
		m.metrics.ObserveQuote(metrics.ResultMismatch, elapsed)
		log.WithError(err).Warn("Quote rejected: user and recipient must match")
	case errors.Is(err, context.Canceled):
		m.mu.Unlock()
		return
	default:
		m.quote = nil
		m.updatedAt = time.Time{}
		m.err = err
		m.metrics.ObserveQuote(metrics.ResultError, elapsed)
		log.WithError(err).Warn("Quote fetch failed")
	}
	snap = m.snapshotLocked(m.now())
	m.mu.Unlock()

	m.notify(snap)
}

func (m *Manager) wait(ctx context.Context) error {
	if m.limiter == nil {
		return nil
	}
	return m.limiter.Wait(ctx)
}

func (m *Manager) notify(snap Snapshot) {
	m.mu.Lock()
	subs := append([]func(Snapshot){}, m.subs...)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
