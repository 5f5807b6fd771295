package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bnema/relayd/internal/domain"
	"github.com/bnema/relayd/internal/ports"
	"go.uber.org/zap"
)

const DefaultPairingDelay = 3 * time.Second

type SupervisorConfig struct {
	// PairingDelay is how long a fresh connection settles before a pairing
	// code is requested.
	PairingDelay time.Duration
	Backoff      domain.BackoffPolicy
}

func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		PairingDelay: DefaultPairingDelay,
		Backoff:      domain.DefaultBackoffPolicy(),
	}
}

type SupervisorDeps struct {
	Transport   ports.Transport
	Credentials ports.CredentialStore
	Ledger      ports.Ledger
	Registry    *Registry
	Clock       ports.Clock
	Logger      *zap.Logger
}

// Supervisor runs one worker goroutine per identity. A worker owns the
// connection's event stream, so transitions for one identity never overlap.
type Supervisor struct {
	transport ports.Transport
	store     ports.CredentialStore
	ledger    ports.Ledger
	registry  *Registry
	clock     ports.Clock
	logger    *zap.Logger
	cfg       SupervisorConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	workers map[domain.Identity]*sessionWorker
	// stopping holds identities whose Stop has not finished cleanup yet.
	stopping map[domain.Identity]struct{}
}

func NewSupervisor(deps SupervisorDeps, cfg SupervisorConfig) *Supervisor {
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Supervisor{
		transport: deps.Transport,
		store:     deps.Credentials,
		ledger:    deps.Ledger,
		registry:  deps.Registry,
		clock:     deps.Clock,
		logger:    deps.Logger,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		workers:   map[domain.Identity]*sessionWorker{},
		stopping:  map[domain.Identity]struct{}{},
	}
}

func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// Start begins supervising id. Progress is delivered to reporter until the
// worker exits.
func (s *Supervisor) Start(id domain.Identity, reporter ports.StatusReporter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrSupervisorClosed
	}
	if _, ok := s.workers[id]; ok {
		return fmt.Errorf("start %s: %w", id, domain.ErrPairingInProgress)
	}
	if _, ok := s.stopping[id]; ok {
		return fmt.Errorf("start %s: %w", id, domain.ErrPairingInProgress)
	}
	if _, ok := s.registry.Get(id); ok {
		return fmt.Errorf("start %s: %w", id, domain.ErrSessionExists)
	}

	ctx, cancel := context.WithCancel(s.ctx)
	w := &sessionWorker{
		id:       id,
		sup:      s,
		reporter: reporter,
		logger:   s.logger.With(zap.String("identity", string(id))),
		cancel:   cancel,
		done:     make(chan struct{}),
		state:    domain.StateIdle,
	}
	s.workers[id] = w
	s.wg.Add(1)

	go w.run(ctx)

	return nil
}

// Replay starts a worker for every identity in the ledger.
func (s *Supervisor) Replay(ctx context.Context, reporter ports.StatusReporter) error {
	ids, err := s.ledger.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	s.logger.Info("replaying active sessions", zap.Int("count", len(ids)))
	for _, id := range ids {
		if err := s.Start(id, reporter); err != nil {
			s.logger.Warn("skip ledger entry", zap.String("identity", string(id)), zap.Error(err))
		}
	}

	return nil
}

// Stop tears a session down for good: the worker and any pending reconnect
// are cancelled, the connection is closed, and the identity's credentials
// and ledger entry are removed. Start is refused for id until cleanup ends.
func (s *Supervisor) Stop(ctx context.Context, id domain.Identity) error {
	s.mu.Lock()
	if _, ok := s.stopping[id]; ok {
		s.mu.Unlock()
		return fmt.Errorf("stop %s: %w", id, domain.ErrPairingInProgress)
	}
	w := s.workers[id]
	_, registered := s.registry.Get(id)
	if w == nil && !registered {
		s.mu.Unlock()
		return fmt.Errorf("stop %s: %w", id, domain.ErrSessionNotFound)
	}
	s.stopping[id] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.stopping, id)
		s.mu.Unlock()
	}()

	if w != nil {
		w.cancel()
		select {
		case <-w.done:
		case <-ctx.Done():
			return fmt.Errorf("stop %s: %w", id, ctx.Err())
		}
	}

	if conn, ok := s.registry.Remove(id); ok {
		if err := conn.Close(); err != nil {
			s.logger.Debug("close connection", zap.String("identity", string(id)), zap.Error(err))
		}
	}

	if err := s.discard(ctx, id); err != nil {
		return fmt.Errorf("stop %s: %w", id, err)
	}

	s.logger.Info("session removed", zap.String("identity", string(id)))
	return nil
}

func (s *Supervisor) State(id domain.Identity) (domain.SessionStatus, bool) {
	for _, status := range s.States() {
		if status.Identity == id {
			return status, true
		}
	}
	return domain.SessionStatus{}, false
}

// States lists every identity that has a worker or a registered connection.
func (s *Supervisor) States() []domain.SessionStatus {
	s.mu.Lock()
	workers := make([]*sessionWorker, 0, len(s.workers))
	for _, w := range s.workers {
		workers = append(workers, w)
	}
	s.mu.Unlock()

	statuses := make(map[domain.Identity]domain.SessionStatus, len(workers))
	for _, w := range workers {
		state, attempt := w.snapshot()
		statuses[w.id] = domain.SessionStatus{Identity: w.id, State: state, Attempt: attempt}
	}
	for _, id := range s.registry.List() {
		status, ok := statuses[id]
		if !ok {
			status = domain.SessionStatus{Identity: id, State: domain.StateOpen}
		}
		status.Registered = true
		statuses[id] = status
	}

	out := make([]domain.SessionStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, status)
	}
	slices.SortFunc(out, func(a, b domain.SessionStatus) int {
		switch {
		case a.Identity < b.Identity:
			return -1
		case a.Identity > b.Identity:
			return 1
		default:
			return 0
		}
	})

	return out
}

// Shutdown stops every worker and closes their connections without touching
// credentials or the ledger, so the next start reconnects them.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown supervisor: %w", ctx.Err())
	}
}

func (s *Supervisor) discard(ctx context.Context, id domain.Identity) error {
	var errs error
	if err := s.store.Delete(ctx, id); err != nil {
		errs = errors.Join(errs, fmt.Errorf("delete credentials: %w", err))
	}
	if err := s.ledger.Remove(ctx, id); err != nil {
		errs = errors.Join(errs, fmt.Errorf("remove from ledger: %w", err))
	}
	return errs
}

func (s *Supervisor) release(w *sessionWorker) {
	s.mu.Lock()
	if s.workers[w.id] == w {
		delete(s.workers, w.id)
	}
	s.mu.Unlock()

	s.wg.Done()
}
