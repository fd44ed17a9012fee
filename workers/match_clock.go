package workers

import (
	"context"
	"log"
	"time"

	"spot-game-server/game"
	"spot-game-server/snapshot"

	"github.com/jonboulle/clockwork"
)

// MatchClockWorker refreshes the snapshot of every running match on an
// interval so timed phase changes happen even when nobody is polling.
type MatchClockWorker struct {
	Engine   *game.Engine
	Cache    *snapshot.Cache[game.Snapshot]
	Clock    clockwork.Clock
	Interval time.Duration
}

func NewMatchClockWorker(engine *game.Engine, cache *snapshot.Cache[game.Snapshot], interval time.Duration) *MatchClockWorker {
	return &MatchClockWorker{Engine: engine, Cache: cache, Clock: engine.Clock, Interval: interval}
}

func (w *MatchClockWorker) Start(ctx context.Context) {
	log.Printf("🔁 Starting match clock (every %s)", w.Interval)
	go w.run(ctx)
}

func (w *MatchClockWorker) run(ctx context.Context) {
	ticker := w.Clock.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if _, err := w.Tick(ctx); err != nil {
				log.Printf("❌ [Clock] tick failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Match clock stopped")
			return
		}
	}
}

// Tick refreshes every running match and returns how many it visited. A
// failing match is logged and skipped.
func (w *MatchClockWorker) Tick(ctx context.Context) (int, error) {
	running, err := w.Engine.RunningMatches(ctx)
	if err != nil {
		return 0, err
	}
	for _, m := range running {
		if _, err := w.Cache.Payload(ctx, m.ID); err != nil {
			log.Printf("⚠️ [Clock] match %s: %v", m.ID, err)
		}
	}
	return len(running), nil
}
