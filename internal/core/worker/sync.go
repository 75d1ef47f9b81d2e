// Package worker runs the background jobs of the ledger: keeping it in step
// with the remote store and charging monthly tuition.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
	"github.com/ojedapedro/colegiopay/internal/core/ledger"
	"github.com/ojedapedro/colegiopay/internal/core/reconcile"
)

// ErrNoRemote is returned by remote operations when no store is configured.
var ErrNoRemote = errors.New("remote store not configured")

// Remote is the school's remote store.
type Remote interface {
	FetchSnapshot(ctx context.Context) (domain.Snapshot, error)
	FetchPending(ctx context.Context) ([]map[string]any, error)
	Push(ctx context.Context, snap domain.Snapshot) error
}

// Store keeps a local copy of the last known-good state.
type Store interface {
	Load(ctx context.Context) (domain.Snapshot, error)
	Save(ctx context.Context, snap domain.Snapshot) error
}

// Connectivity tells the UI whether the remote store is reachable.
type Connectivity int32

const (
	Offline  Connectivity = iota // last remote call failed
	Online                       // last remote call succeeded
	Degraded                     // reads work but the last push failed
)

func (c Connectivity) String() string {
	switch c {
	case Online:
		return "online"
	case Degraded:
		return "degraded"
	default:
		return "offline"
	}
}

const maxPushAttempts = 3

// Syncer moves state between the in-memory ledger, the remote store and the
// local database. Both remote and store may be nil.
type Syncer struct {
	service *ledger.Service
	remote  Remote
	store   Store
	logger  *slog.Logger
	state   atomic.Int32
	backoff time.Duration

	pushMu sync.Mutex // pushes go out in order, each with the latest state
}

func NewSyncer(service *ledger.Service, remote Remote, store Store, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		service: service,
		remote:  remote,
		store:   store,
		logger:  logger,
		backoff: 2 * time.Second,
	}
}

func (s *Syncer) Status() Connectivity {
	return Connectivity(s.state.Load())
}

func (s *Syncer) setStatus(c Connectivity) {
	if old := Connectivity(s.state.Swap(int32(c))); old != c {
		s.logger.Info("Connectivity changed", "from", old.String(), "to", c.String())
	}
}

// Bootstrap loads the initial state: the remote store first, the local copy
// when the remote is unreachable. Only without a remote store may the ledger
// start empty; otherwise the first push would wipe the remote state.
func (s *Syncer) Bootstrap(ctx context.Context) error {
	err := s.Refresh(ctx)
	if err == nil {
		return nil
	}
	noRemote := errors.Is(err, ErrNoRemote)
	if s.store == nil {
		if noRemote {
			return nil
		}
		return err
	}

	snap, loadErr := s.store.Load(ctx)
	if loadErr != nil {
		if noRemote {
			s.logger.Warn("⚠️ No local snapshot available, starting empty", "error", loadErr)
			return nil
		}
		return fmt.Errorf("no state available: %w (local: %v)", err, loadErr)
	}
	if err := s.service.Replace(snap); err != nil {
		return fmt.Errorf("local snapshot: %w", err)
	}
	s.logger.Info("Loaded local snapshot", "representatives", len(snap.Representatives), "payments", len(snap.Payments))
	return nil
}

// Refresh replaces the ledger with the remote state. A snapshot the ledger
// rejects leaves the current state untouched.
func (s *Syncer) Refresh(ctx context.Context) error {
	if s.remote == nil {
		return ErrNoRemote
	}
	snap, err := s.remote.FetchSnapshot(ctx)
	if err != nil {
		s.setStatus(Offline)
		return fmt.Errorf("refresh: %w", err)
	}
	s.setStatus(Online)
	if err := s.service.Replace(snap); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	s.persist(ctx)
	return nil
}

// SyncPending pulls the virtual office's pending payments and merges them.
// New records are pushed back so the remote store assigns their IDs for good.
func (s *Syncer) SyncPending(ctx context.Context) (reconcile.Report, error) {
	if s.remote == nil {
		return reconcile.Report{}, ErrNoRemote
	}
	raws, err := s.remote.FetchPending(ctx)
	if err != nil {
		s.setStatus(Offline)
		return reconcile.Report{}, fmt.Errorf("sync pending: %w", err)
	}
	s.setStatus(Online)

	fresh, report := s.service.MergeExternal(raws)
	if len(fresh) > 0 {
		s.logger.Info("Worker: Imported virtual office payments", "imported", report.Imported, "duplicates", report.Duplicates)
		if err := s.Push(ctx); err != nil {
			return report, err
		}
	}
	return report, nil
}

// Push sends the current state to the remote store with a few retries and
// saves it locally either way.
func (s *Syncer) Push(ctx context.Context) error {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	s.persist(ctx)
	if s.remote == nil {
		return nil
	}

	snap := s.service.Snapshot()
	var err error
	for attempt := 1; attempt <= maxPushAttempts; attempt++ {
		if err = s.remote.Push(ctx, snap); err == nil {
			s.setStatus(Online)
			return nil
		}
		s.logger.Error("Worker: Push failed", "error", err, "attempts", attempt)
		if attempt == maxPushAttempts {
			break
		}
		select {
		case <-ctx.Done():
			s.setStatus(Degraded)
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}
	s.setStatus(Degraded)
	return fmt.Errorf("push: %w", err)
}

// PushAsync pushes in the background so request handlers never wait on the
// remote store.
func (s *Syncer) PushAsync() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.Push(ctx); err != nil {
			s.logger.Warn("⚠️ Background push failed, state kept locally", "error", err)
		}
	}()
}

func (s *Syncer) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, s.service.Snapshot()); err != nil {
		s.logger.Error("Worker: Failed to save local snapshot", "error", err)
	}
}

// Persist saves the current state locally. Used on shutdown.
func (s *Syncer) Persist(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.store.Save(ctx, s.service.Snapshot())
}

// StartSyncWorker pulls pending payments every interval until ctx is done.
func StartSyncWorker(ctx context.Context, s *Syncer, interval time.Duration) {
	if s.remote == nil {
		s.logger.Warn("⚠️ REMOTE_URL is not set, sync worker disabled")
		return
	}
	go func() {
		s.logger.Info("👷 Sync Worker started", "interval", interval.String())
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Sync Worker stopped")
				return
			case <-ticker.C:
				if _, err := s.SyncPending(ctx); err != nil {
					s.logger.Error("Worker: Sync failed", "error", err)
				}
			}
		}
	}()
}
