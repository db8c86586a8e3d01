package land

import (
	"context"
	"log"
	"time"
)

// Loop drives the per-tick work: presence scanning, the snapshot cadence
// and the name-cache flush cadence. All registry access stays behind the
// registry's own lock, so the loop is just a scheduler.
type Loop struct {
	Reg      *Registry
	Presence *PresenceTracker
	Log      *log.Logger

	TickRateHz         int
	SnapshotEveryTicks int
	NameFlushTicks     int
}

func (l *Loop) Run(ctx context.Context) error {
	rate := l.TickRateHz
	if rate <= 0 {
		rate = 20
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tick := l.Reg.AdvanceTick()
			if l.Presence != nil {
				l.Presence.Scan()
			}
			if l.SnapshotEveryTicks > 0 && tick%uint64(l.SnapshotEveryTicks) == 0 {
				l.Reg.Persist()
			}
			if l.NameFlushTicks > 0 && tick%uint64(l.NameFlushTicks) == 0 {
				if err := l.Reg.FlushNameCache(); err != nil && l.Log != nil {
					l.Log.Printf("flush name cache: %v", err)
				}
			}
		}
	}
}
