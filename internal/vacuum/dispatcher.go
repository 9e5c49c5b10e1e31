package vacuum

import (
	"context"
	"fmt"
	"time"
)

// SetCleaning starts, pauses or resumes a clean.
//
// Valid transitions:
//   - docked (charging or charged), on: START
//   - cleaning, off: PAUSE
//   - paused, on: RESUME
//
// Anything else publishes nothing and returns the current cleaning flag.
// Returns the cleaning flag observed after the robot reported back.
func (s *Session) SetCleaning(ctx context.Context, on bool) (bool, error) {
	state, err := s.runCommand(ctx, func(current State, now time.Time) (command, bool) {
		switch {
		case on && current.IsDocked():
			return startCommand(now), true
		case !on && current.Lifecycle == LifecycleCleaning:
			return pauseCommand(now), true
		case on && current.Lifecycle == LifecycleCleaningPaused:
			return resumeCommand(now), true
		default:
			s.logger.Info("ignoring clean request",
				"requested", on,
				"state", string(current.Lifecycle),
			)
			return command{}, false
		}
	})
	return state.IsCleaning(), err
}

// SetGoToDock sends the robot home. Turning the request off is not a
// command the robot understands and is ignored.
func (s *Session) SetGoToDock(ctx context.Context, on bool) (bool, error) {
	state, err := s.runCommand(ctx, func(current State, now time.Time) (command, bool) {
		if !on {
			s.logger.Info("ignoring dock cancel request", "state", string(current.Lifecycle))
			return command{}, false
		}
		return abortCommand(now), true
	})
	return state.IsDockRequested(), err
}

// SetQuietPower selects half power (on) or full power (off) as both the
// current and the default suction mode.
func (s *Session) SetQuietPower(ctx context.Context, on bool) (bool, error) {
	mode := PowerModeFull
	if on {
		mode = PowerModeHalf
	}

	state, err := s.runCommand(ctx, func(_ State, now time.Time) (command, bool) {
		return stateSetCommand(now, mode), true
	})
	return state.IsQuietPower(), err
}

// runCommand holds the command slot, lets plan pick a command for the
// current state and dispatches it. When plan declines, the current state is
// returned with a nil error.
func (s *Session) runCommand(ctx context.Context, plan func(current State, now time.Time) (command, bool)) (State, error) {
	select {
	case s.commandSlot <- struct{}{}:
	case <-ctx.Done():
		return s.Snapshot(), fmt.Errorf("waiting for command slot: %w", ctx.Err())
	}
	defer func() { <-s.commandSlot }()

	cmd, ok := plan(s.Snapshot(), s.now())
	if !ok {
		return s.Snapshot(), nil
	}

	return s.dispatch(ctx, cmd)
}

// dispatch publishes cmd and a refresh request, then waits for the next
// reconciled status.
func (s *Session) dispatch(ctx context.Context, cmd command) (State, error) {
	id, confirmed := s.addWaiter()

	if err := s.publish(cmd); err != nil {
		s.removeWaiter(id)
		return s.Snapshot(), fmt.Errorf("%w: %w", ErrCommandFailed, err)
	}

	if err := s.RequestRefresh(); err != nil {
		s.removeWaiter(id)
		return s.Snapshot(), fmt.Errorf("%w: %s: %w", ErrCommandFailed, cmd.Msg, err)
	}

	timer := time.NewTimer(s.commandTimeout)
	defer timer.Stop()

	select {
	case state := <-confirmed:
		s.logger.Debug("command confirmed", "msg", cmd.Msg, "state", string(state.Lifecycle))
		return state, nil

	case <-timer.C:
		s.removeWaiter(id)
		s.logger.Warn("command not confirmed", "msg", cmd.Msg, "timeout", s.commandTimeout)
		return s.Snapshot(), fmt.Errorf("%w: no status within %v after %s",
			ErrDeviceUnresponsive, s.commandTimeout, cmd.Msg)

	case <-ctx.Done():
		s.removeWaiter(id)
		return s.Snapshot(), fmt.Errorf("waiting for %s confirmation: %w", cmd.Msg, ctx.Err())
	}
}
