// Package retention runs the periodic cleanup loop that reconciles
// locally tracked call rooms against an external real-time service: any
// room the service no longer reports (or reports empty) is marked
// ended in the persisted record.
package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/corewire/assistant-core/internal/store"
	"github.com/corewire/assistant-core/pkg/contracts"
)

// DefaultCleanupInterval matches the 2-minute cadence named for the
// call-room cleanup loop.
const DefaultCleanupInterval = 2 * time.Minute

// Janitor polls the external call-room service on a fixed interval and
// reconciles ended rooms into the store.
type Janitor struct {
	store       store.Store
	rooms       contracts.CallRoomProvider
	workspaceID string
	interval    time.Duration
}

// NewJanitor creates a cleanup loop for the given workspace. interval <=
// 0 defaults to DefaultCleanupInterval.
func NewJanitor(s store.Store, rooms contracts.CallRoomProvider, workspaceID string, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &Janitor{store: s, rooms: rooms, workspaceID: workspaceID, interval: interval}
}

// Start runs the janitor in the calling goroutine until ctx is
// cancelled, running once immediately and then on a ticker.
func (j *Janitor) Start(ctx context.Context) {
	log.Info().Dur("interval", j.interval).Msg("call room cleanup loop started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("call room cleanup loop stopped")
			return
		case <-ticker.C:
			j.runCycle(ctx)
		}
	}
}

// runCycle marks every locally active room absent (or empty) in the
// external service as ended.
func (j *Janitor) runCycle(ctx context.Context) {
	active, err := j.store.ListActiveCallRooms(ctx, j.workspaceID)
	if err != nil {
		log.Warn().Err(err).Msg("cleanup loop: failed to list active call rooms")
		return
	}
	if len(active) == 0 {
		return
	}

	externalActive, err := j.rooms.ListActiveRooms(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("cleanup loop: failed to query external call room service")
		return
	}

	participants := make(map[string]int, len(externalActive))
	for _, r := range externalActive {
		participants[r.ExternalRoomID] = r.ParticipantCount
	}

	ended := 0
	for _, room := range active {
		if participants[room.ExternalRoomID] > 0 {
			continue
		}
		if err := j.store.MarkCallRoomEnded(ctx, room.ID); err != nil {
			log.Warn().Err(err).Str("room", room.ID).Msg("cleanup loop: failed to mark room ended")
			continue
		}
		ended++
	}
	if ended > 0 {
		log.Info().Int("ended", ended).Int("checked", len(active)).Msg("cleanup loop: call rooms reconciled")
	}
}
