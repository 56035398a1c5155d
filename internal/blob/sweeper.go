package blob

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically removes orphaned blobs. The referenced set is
// pulled fresh on every tick so a sweep never races a concurrent upload
// that has already been attached to a transaction.
type Sweeper struct {
	store      *Store
	referenced func() map[string]struct{}
	interval   time.Duration
	log        zerolog.Logger
}

// NewSweeper builds a sweeper over the store. referenced returns the ids
// currently attached to any transaction.
func NewSweeper(store *Store, referenced func() map[string]struct{}, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		store:      store,
		referenced: referenced,
		interval:   interval,
		log:        log,
	}
}

// Run sweeps on every tick until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("Starting blob sweeper")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Blob sweeper stopped")
			return
		case <-ticker.C:
			removed, err := s.store.Sweep(s.referenced())
			if err != nil {
				s.log.Error().Err(err).Msg("Blob sweep failed")
				continue
			}
			if removed > 0 {
				s.log.Info().Int("removed", removed).Msg("Swept orphaned blobs")
			}
		}
	}
}
