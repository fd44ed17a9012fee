package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// LobbyMaxAge is how long a match may sit in the lobby before it is closed.
const LobbyMaxAge = 6 * time.Hour

// StartHousekeeping schedules the cache sweep, the stale lobby cleanup and
// the inactive session logout. The caller shuts the scheduler down.
func (s *GameService) StartHousekeeping(ctx context.Context) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithClock(s.Clock))
	if err != nil {
		return nil, err
	}

	jobs := []struct {
		every time.Duration
		name  string
		run   func(context.Context)
	}{
		{1 * time.Minute, "cache-sweep", s.SweepCache},
		{10 * time.Minute, "lobby-cleanup", s.CloseStaleLobbies},
		{5 * time.Minute, "session-expiry", s.ExpireSessions},
	}
	for _, j := range jobs {
		run := j.run
		_, err := sched.NewJob(
			gocron.DurationJob(j.every),
			gocron.NewTask(func() { run(ctx) }),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, err
		}
	}
	sched.Start()
	return sched, nil
}

func (s *GameService) SweepCache(ctx context.Context) {
	n, err := s.Cache.Sweep(ctx)
	if err != nil {
		log.Printf("[Scheduler] cache sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Scheduler] evicted %d stale snapshot(s)", n)
	}
}

func (s *GameService) CloseStaleLobbies(ctx context.Context) {
	n, err := s.Engine.CloseStaleLobbies(ctx, s.Clock.Now().Add(-LobbyMaxAge))
	if err != nil {
		log.Printf("[Scheduler] lobby cleanup failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("✅ Closed %d stale lobby(ies)", n)
	}
}

func (s *GameService) ExpireSessions(ctx context.Context) {
	n, err := s.Sessions.ExpireInactive(ctx, s.Clock.Now().Add(-SessionIdle))
	if err != nil {
		log.Printf("[Scheduler] session expiry failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Scheduler] logged out %d inactive session(s)", n)
	}
}
