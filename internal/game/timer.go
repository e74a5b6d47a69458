package game

import (
	"context"
	"fmt"
	"time"

	"cowboys.arena/internal/protocol"
	"cowboys.arena/internal/sim/tuning"
)

type runningTimer struct {
	settings tuning.Timer
	cancel   context.CancelFunc
	done     chan struct{}
}

func validTimer(t tuning.Timer) error {
	if t.CowboyTurnPeriodMs <= 0 || t.BulletTurnPeriodMs <= 0 || t.BulletTurns < 0 {
		return fmt.Errorf("%w: cowboy %dms, bullet %dms, %d bullet turns", ErrBadTimer,
			t.CowboyTurnPeriodMs, t.BulletTurnPeriodMs, t.BulletTurns)
	}
	return nil
}

// StartTimer plays turns until StopTimer or ctx ends: a cowboy sub-turn,
// then BulletTurns bullet sub-turns, each followed by its period.
func (gm *Game) StartTimer(ctx context.Context, settings tuning.Timer) error {
	if err := validTimer(settings); err != nil {
		return err
	}
	gm.timerMu.Lock()
	defer gm.timerMu.Unlock()
	if gm.timer != nil {
		return ErrTimerRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	rt := &runningTimer{settings: settings, cancel: cancel, done: make(chan struct{})}
	gm.timer = rt
	go gm.runTimer(ctx, rt)
	gm.logger.Printf("timer started: cowboy %v, bullet %v x%d",
		settings.CowboyPeriod(), settings.BulletPeriod(), settings.BulletTurns)
	return nil
}

// StopTimer stops the loop and waits for a sub-turn in flight to finish.
func (gm *Game) StopTimer() error {
	gm.timerMu.Lock()
	rt := gm.timer
	gm.timer = nil
	gm.timerMu.Unlock()
	if rt == nil {
		return ErrTimerStopped
	}
	rt.cancel()
	<-rt.done
	gm.logger.Printf("timer stopped")
	return nil
}

// Close stops the timer if it runs.
func (gm *Game) Close() {
	_ = gm.StopTimer()
}

func (gm *Game) runTimer(ctx context.Context, rt *runningTimer) {
	defer close(rt.done)
	defer func() {
		// The loop may end on its own when ctx is cancelled from outside.
		gm.timerMu.Lock()
		if gm.timer == rt {
			gm.timer = nil
		}
		gm.timerMu.Unlock()
	}()

	s := rt.settings
	next := time.Now()
	wait := func(d time.Duration) bool {
		next = next.Add(d)
		if now := time.Now(); next.Before(now) {
			// Fell behind: restart the schedule from now.
			next = now
		}
		t := time.NewTimer(time.Until(next))
		defer t.Stop()
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
			return true
		}
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := gm.CowboysTurn(); err != nil {
			gm.logger.Printf("cowboy turn: %v", err)
		}
		if !wait(s.CowboyPeriod()) {
			return
		}
		for i := 0; i < s.BulletTurns; i++ {
			if _, err := gm.BulletsTurn(); err != nil {
				gm.logger.Printf("bullet turn: %v", err)
			}
			if !wait(s.BulletPeriod()) {
				return
			}
		}
	}
}

// Status reports the counters and the timer.
func (gm *Game) Status() protocol.GameStatus {
	gm.timerMu.Lock()
	rt := gm.timer
	gm.timerMu.Unlock()

	settings := gm.cfg.Tuning.Timer
	if rt != nil {
		settings = rt.settings
	}
	rounds, _ := gm.Rounds()

	gm.mu.Lock()
	defer gm.mu.Unlock()
	return protocol.GameStatus{
		Turn:          gm.grid.Turn(),
		BulletSubturn: gm.grid.Subturn(),
		TimerRunning:  rt != nil,
		Timer: protocol.TimerSettings{
			CowboyTurnPeriodMs: settings.CowboyTurnPeriodMs,
			BulletTurnPeriodMs: settings.BulletTurnPeriodMs,
			BulletTurns:        settings.BulletTurns,
		},
		Rounds: len(rounds),
	}
}
