package personalization

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sync"
	"time"

	"myGreenStorefront/domain"
	"myGreenStorefront/pkg/logger"

	"github.com/go-playground/validator/v10"
)

// Limits bounds every aggregate kept per scope.
type Limits struct {
	HistorySize       int
	ProductViewCap    int
	CategoryCap       int
	SearchHistorySize int
	FeedbackCap       int
	SectionCap        int
}

const (
	defaultHistorySize       = 50
	defaultProductViewCap    = 100
	defaultCategoryCap       = 20
	defaultSearchHistorySize = 20
	defaultFeedbackCap       = 100
	defaultSectionCap        = 50
)

func DefaultLimits() Limits {
	return Limits{
		HistorySize:       defaultHistorySize,
		ProductViewCap:    defaultProductViewCap,
		CategoryCap:       defaultCategoryCap,
		SearchHistorySize: defaultSearchHistorySize,
		FeedbackCap:       defaultFeedbackCap,
		SectionCap:        defaultSectionCap,
	}
}

// Manager owns the state shared by every scope: the store provider, the
// per-scope locks, default settings and the eligibility checker.
type Manager struct {
	provider    StoreProvider
	defaults    domain.PersonalizationSettings
	limits      Limits
	eligChecker EligibilityChecker
	validate    *validator.Validate
	now         func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	locks [lockStripes]sync.Mutex
}

// lockStripes bounds the number of scope mutexes; scopes sharing a stripe
// simply serialize with each other.
const lockStripes = 256

type Option func(*Manager)

// WithDefaults replaces the built-in default settings.
func WithDefaults(cfg domain.PersonalizationSettings) Option {
	return func(m *Manager) { m.defaults = cfg }
}

func WithLimits(l Limits) Option {
	return func(m *Manager) { m.limits = l }
}

func WithEligibilityChecker(c EligibilityChecker) Option {
	return func(m *Manager) {
		if c != nil {
			m.eligChecker = c
		}
	}
}

// WithClock injects the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRand injects the random source used for shuffles.
func WithRand(r *rand.Rand) Option {
	return func(m *Manager) {
		if r != nil {
			m.rng = r
		}
	}
}

func WithValidator(v *validator.Validate) Option {
	return func(m *Manager) {
		if v != nil {
			m.validate = v
		}
	}
}

func NewManager(provider StoreProvider, opts ...Option) *Manager {
	m := &Manager{
		provider:    provider,
		defaults:    DefaultSettings(),
		limits:      DefaultLimits(),
		eligChecker: NoopEligibilityChecker{},
		validate:    validator.New(),
		now:         time.Now,
		rng:         rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ForScope returns the engine bound to one scope (browser session).
func (m *Manager) ForScope(scope string) *Service {
	return &Service{
		m:     m,
		scope: scope,
		store: m.provider.ForScope(scope),
	}
}

// Defaults returns the server-wide default settings.
func (m *Manager) Defaults() domain.PersonalizationSettings {
	return m.defaults
}

// scopeLock hashes scope onto one of the lock stripes.
func (m *Manager) scopeLock(scope string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(scope))
	return &m.locks[h.Sum32()%lockStripes]
}

// shuffle permutes n elements uniformly (Fisher-Yates).
func (m *Manager) shuffle(n int, swap func(i, j int)) {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	m.rng.Shuffle(n, swap)
}

// Service is the personalization engine of one scope. Every public method is
// fail-open: errors and panics are logged and turned into a safe default.
type Service struct {
	m     *Manager
	scope string
	store Store
}

// NewService builds a single-scope engine on top of store.
func NewService(store Store, opts ...Option) *Service {
	return NewManager(SingleStore(store), opts...).ForScope("default")
}

func (s *Service) Scope() string { return s.scope }

// lock serializes read-modify-write work within the scope.
func (s *Service) lock() func() {
	mu := s.m.scopeLock(s.scope)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) now() time.Time {
	return s.m.now().UTC()
}

// recoverTo must be deferred. It converts a panic into a logged failure and
// runs fallback to set the safe return value.
func (s *Service) recoverTo(ctx context.Context, op string, fallback func()) {
	if r := recover(); r != nil {
		s.fail(ctx, op, fmt.Errorf("panic: %v", r))
		FallbacksTotal.WithLabelValues(op).Inc()
		if fallback != nil {
			fallback()
		}
	}
}

func (s *Service) fail(ctx context.Context, op string, err error) {
	logger.Error("personalization operation failed",
		"trace_id", TraceIDFromContext(ctx),
		"op", op,
		"scope", s.scope,
		"error", err,
	)
}

func (s *Service) warn(msg string, err error, kv ...any) {
	args := append([]any{"scope", s.scope, "error", err}, kv...)
	logger.Warn(msg, args...)
}

func (s *Service) debug(msg string, kv ...any) {
	args := append([]any{"scope", s.scope}, kv...)
	logger.Debug(msg, args...)
}

// withLock runs fn under the scope lock.
func (s *Service) withLock(fn func() error) error {
	unlock := s.lock()
	defer unlock()
	return fn()
}
