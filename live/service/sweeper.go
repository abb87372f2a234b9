package service

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/kisschan/monachat-like/internal/log"
	"github.com/kisschan/monachat-like/live"
)

// Sweeper reclaims rooms stuck in starting past the lock TTL. It shares
// its lifecycle with the registry, it is started and stopped by the
// composition root rather than free-running.
type Sweeper struct {
	cfg      live.Config
	registry live.Registry
	notifier live.StatusNotifier
	clock    clockwork.Clock
	logger   *log.Logger
}

func NewSweeper(
	cfg live.Config,
	registry live.Registry,
	notifier live.StatusNotifier,
	clock clockwork.Clock,
	logger *log.Logger,
) *Sweeper {
	return &Sweeper{
		cfg:      cfg,
		registry: registry,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}
}

// Run blocks until ctx is done, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("Starting expiry sweeper",
		log.Duration("interval", s.cfg.SweepInterval),
		log.Duration("ttl", s.cfg.StartingTTL))

	ticker := s.clock.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping expiry sweeper")
			return nil
		case <-ticker.Chan():
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	sweeperRuns.Add(ctx, 1)

	reclaimed := s.registry.SweepExpiredStarting(s.cfg.StartingTTL)
	if len(reclaimed) == 0 {
		return
	}

	sweeperReclaimed.Add(ctx, int64(len(reclaimed)))
	s.logger.Info("Reclaimed stuck sessions", log.Strings("rooms", reclaimed))

	// correction events so clients stuck on a dead handshake reset;
	// reclaimed rooms were never in the live list, so no list invalidate
	for _, room := range reclaimed {
		s.notifier.RoomStatusChanged(room, live.StatusView{Room: room})
	}
}
