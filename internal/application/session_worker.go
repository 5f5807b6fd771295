package application

import (
	"context"
	"sync"
	"time"

	"github.com/bnema/relayd/internal/domain"
	"github.com/bnema/relayd/internal/ports"
	"go.uber.org/zap"
)

type outcomeKind int

const (
	outcomeStopped outcomeKind = iota
	outcomeTransient
	outcomeTerminal
)

type sessionOutcome struct {
	kind   outcomeKind
	opened bool
	reason domain.DisconnectReason
	err    error
}

type pairingResult struct {
	code string
	err  error
}

type sessionWorker struct {
	id       domain.Identity
	sup      *Supervisor
	reporter ports.StatusReporter
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}

	mu      sync.Mutex
	state   domain.SessionState
	attempt int
}

func (w *sessionWorker) run(ctx context.Context) {
	defer close(w.done)
	defer w.sup.release(w)

	backoff := w.sup.cfg.Backoff
	attempt := 0
	for {
		outcome := w.connectOnce(ctx, attempt)
		switch outcome.kind {
		case outcomeStopped:
			w.setState(domain.StateIdle, 0)
			return
		case outcomeTerminal:
			w.terminate(ctx, outcome.reason)
			return
		}

		if outcome.opened {
			attempt = 0
		}
		attempt++

		if backoff.Exhausted(attempt) {
			w.setState(domain.StateAbandoned, attempt-1)
			w.logger.Error("giving up on session", zap.Int("attempts", attempt-1), zap.Stringer("reason", outcome.reason), zap.Error(outcome.err))
			w.report(ctx, domain.StatusUpdate{State: domain.StateAbandoned, Attempt: attempt - 1, Reason: &outcome.reason, Err: outcome.err})
			return
		}

		delay := backoff.Delay(attempt)
		w.setState(domain.StateReconnecting, attempt)
		w.logger.Info("reconnect scheduled", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Stringer("reason", outcome.reason))
		w.report(ctx, domain.StatusUpdate{State: domain.StateReconnecting, Attempt: attempt, Reason: &outcome.reason, Err: outcome.err})

		select {
		case <-ctx.Done():
			w.setState(domain.StateIdle, 0)
			return
		case <-w.sup.clock.After(delay):
		}
	}
}

// connectOnce drives a single connection from dial to close.
func (w *sessionWorker) connectOnce(ctx context.Context, attempt int) sessionOutcome {
	w.setState(domain.StateConnecting, attempt)

	creds, err := w.sup.store.Load(ctx, w.id)
	if err != nil {
		if ctx.Err() != nil {
			return sessionOutcome{kind: outcomeStopped}
		}
		w.logger.Error("load credentials", zap.Error(err))
		return sessionOutcome{kind: outcomeTransient, err: err}
	}

	conn, err := w.sup.transport.Connect(ctx, w.id, creds)
	if err != nil {
		if ctx.Err() != nil {
			return sessionOutcome{kind: outcomeStopped}
		}
		w.logger.Warn("connect", zap.Error(err))
		return sessionOutcome{kind: outcomeTransient, err: err, reason: domain.DisconnectReason{Message: err.Error()}}
	}

	paired := !creds.Empty()
	var pairingTimer <-chan time.Time
	if !paired {
		w.setState(domain.StateAwaitingPairing, attempt)
		pairingTimer = w.sup.clock.After(w.sup.cfg.PairingDelay)
	} else {
		w.report(ctx, domain.StatusUpdate{State: domain.StateConnecting, Attempt: attempt})
	}
	pairingResults := make(chan pairingResult, 1)

	opened := false
	events := conn.Events()
	for {
		select {
		case <-ctx.Done():
			w.sup.registry.RemoveIf(w.id, conn)
			_ = conn.Close()
			return sessionOutcome{kind: outcomeStopped, opened: opened}

		case <-pairingTimer:
			pairingTimer = nil
			if paired || opened {
				continue
			}
			go func() {
				code, err := conn.RequestPairingCode(ctx, string(w.id))
				pairingResults <- pairingResult{code: code, err: err}
			}()

		case res := <-pairingResults:
			if res.err != nil {
				if ctx.Err() != nil {
					continue
				}
				w.logger.Warn("request pairing code", zap.Error(res.err))
				w.report(ctx, domain.StatusUpdate{State: domain.StateAwaitingPairing, Err: res.err})
				continue
			}
			w.logger.Info("pairing code issued")
			w.report(ctx, domain.StatusUpdate{State: domain.StateAwaitingPairing, PairingCode: domain.FormatPairingCode(res.code)})

		case ev, ok := <-events:
			if !ok {
				ev = ports.Event{Kind: ports.EventClosed, Reason: domain.DisconnectReason{Message: "event stream ended"}}
			}

			switch ev.Kind {
			case ports.EventConnecting:
				w.logger.Debug("transport connecting")

			case ports.EventCredentials:
				w.persist(ctx, ev.Credentials)
				if !ev.Credentials.Empty() {
					paired = true
				}

			case ports.EventOpen:
				if opened {
					continue
				}
				opened = true
				if err := w.open(ctx, conn); err != nil {
					_ = conn.Close()
					return sessionOutcome{kind: outcomeStopped, opened: true, err: err}
				}

			case ports.EventClosed:
				w.sup.registry.RemoveIf(w.id, conn)
				_ = conn.Close()
				w.logger.Info("connection closed", zap.Stringer("reason", ev.Reason), zap.Bool("terminal", ev.Reason.IsTerminal()))
				if ev.Reason.IsTerminal() {
					return sessionOutcome{kind: outcomeTerminal, opened: opened, reason: ev.Reason}
				}
				return sessionOutcome{kind: outcomeTransient, opened: opened, reason: ev.Reason}
			}
		}
	}
}

func (w *sessionWorker) open(ctx context.Context, conn ports.Conn) error {
	if err := w.sup.registry.Put(w.id, conn); err != nil {
		w.logger.Error("register connection", zap.Error(err))
		w.report(ctx, domain.StatusUpdate{State: domain.StateIdle, Err: err})
		return err
	}

	if err := w.sup.ledger.Add(ctx, w.id); err != nil {
		w.logger.Error("add to ledger", zap.Error(err))
	}

	w.setState(domain.StateOpen, 0)
	w.logger.Info("session open")
	w.report(ctx, domain.StatusUpdate{State: domain.StateOpen})
	return nil
}

// persist writes rotated credential material before the next event is
// handled. Cancellation is ignored so a rotation is never half applied.
func (w *sessionWorker) persist(ctx context.Context, update domain.Credentials) {
	if len(update.Files) == 0 {
		return
	}

	if err := w.sup.store.Save(context.WithoutCancel(ctx), w.id, update); err != nil {
		w.logger.Error("persist credentials", zap.Error(err))
	}
}

func (w *sessionWorker) terminate(ctx context.Context, reason domain.DisconnectReason) {
	w.setState(domain.StateClosing, 0)

	if err := w.sup.discard(context.WithoutCancel(ctx), w.id); err != nil {
		w.logger.Error("discard session", zap.Error(err))
	}

	w.setState(domain.StateIdle, 0)
	w.logger.Info("session logged out")
	w.report(ctx, domain.StatusUpdate{State: domain.StateIdle, Reason: &reason})
}

func (w *sessionWorker) report(ctx context.Context, update domain.StatusUpdate) {
	if w.reporter == nil {
		return
	}

	update.Identity = w.id
	w.reporter.Report(context.WithoutCancel(ctx), update)
}

func (w *sessionWorker) setState(state domain.SessionState, attempt int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.state = state
	w.attempt = attempt
}

func (w *sessionWorker) snapshot() (domain.SessionState, int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.state, w.attempt
}
