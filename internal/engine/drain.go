package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/stocksync/internal/metrics"
	"github.com/roach88/stocksync/internal/movement"
	"github.com/roach88/stocksync/internal/remote"
)

// Report summarizes one Drain call.
type Report struct {
	// Pass numbers passes that ran; zero for busy or skipped calls.
	Pass int64 `json:"pass,omitempty"`

	// Busy is set when another pass was already in flight.
	Busy bool `json:"busy,omitempty"`
	// Skipped is set when the monitor reported offline.
	Skipped bool `json:"skipped,omitempty"`

	// Snapshot is the number of records read at the start of the pass.
	Snapshot     int `json:"snapshot"`
	Confirmed    int `json:"confirmed"`
	DeadLettered int `json:"dead_lettered"`
	// Remaining counts snapshot records still queued after the pass.
	Remaining int `json:"remaining"`

	// State is the state machine position when the pass ended.
	State State `json:"state"`

	// Err is the *DrainError that stopped the pass, nil when it completed.
	Err error `json:"-"`

	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Complete reports whether the pass ran and confirmed every snapshot record.
func (r Report) Complete() bool {
	return r.Pass != 0 && r.Err == nil
}

// Drain replays the pending queue once.
//
// The queue is read once; records are sent in order and each is removed
// only after the endpoint confirmed it. The first failure stops the pass.
//
// Returns immediately with Skipped when offline and with Busy when another
// pass is running. Remote failures are reported in Report.Err; store
// failures are also returned as the error.
func (e *Engine) Drain(ctx context.Context) (Report, error) {
	if !e.conn.IsOnline() {
		e.metrics.TrackDrain().End(metrics.ResultSkipped)
		return Report{Skipped: true, State: e.State()}, nil
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		e.metrics.TrackDrain().End(metrics.ResultBusy)
		return Report{Busy: true, State: e.State()}, nil
	}
	defer func() {
		e.inFlight.Store(false)
		select {
		case e.finished <- struct{}{}:
		default:
		}
	}()

	tracker := e.metrics.TrackDrain()
	rep := Report{Pass: e.clock.Next(), Started: time.Now()}
	log := e.logger.With().Int64("pass", rep.Pass).Logger()
	e.setState(Draining)

	// Queue writes after a confirmed send must land even if ctx ends.
	storeCtx := context.WithoutCancel(ctx)

	records, err := e.queue.ListPending(ctx)
	if err != nil {
		derr := &DrainError{Code: ErrCodeStoreFailure, Pass: rep.Pass, Err: err}
		rep.Err = derr
		return e.finish(rep, Aborted, tracker, metrics.ResultError), derr
	}
	rep.Snapshot = len(records)
	log.Debug().Int("snapshot", rep.Snapshot).Msg("drain started")

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			rep.Err = &DrainError{Code: ErrCodeCancelled, Pass: rep.Pass, LocalID: rec.LocalID, Err: err}
			return e.finish(rep, Aborted, tracker, metrics.ResultAborted), nil
		}

		if _, err := e.sender.SendMovement(ctx, e.replayRequest(rec)); err != nil {
			if ctx.Err() != nil {
				rep.Err = &DrainError{Code: ErrCodeCancelled, Pass: rep.Pass, LocalID: rec.LocalID, Err: ctx.Err()}
				return e.finish(rep, Aborted, tracker, metrics.ResultAborted), nil
			}

			rep.Err = &DrainError{Code: ErrCodeRemoteFailure, Pass: rep.Pass, LocalID: rec.LocalID, Err: err}
			log.Warn().Err(err).Int64("local_id", rec.LocalID).Msg("replay failed, stopping drain")
			if serr := e.recordFailure(storeCtx, log, rec, err, &rep); serr != nil {
				derr := &DrainError{Code: ErrCodeStoreFailure, Pass: rep.Pass, LocalID: rec.LocalID, Err: serr}
				rep.Err = derr
				return e.finish(rep, Aborted, tracker, metrics.ResultError), derr
			}
			return e.finish(rep, Aborted, tracker, metrics.ResultAborted), nil
		}

		// Confirmed remotely. If the removal fails the record is sent again
		// on the next pass.
		if err := e.queue.Remove(storeCtx, rec.LocalID); err != nil {
			derr := &DrainError{Code: ErrCodeStoreFailure, Pass: rep.Pass, LocalID: rec.LocalID, Err: err}
			rep.Err = derr
			log.Error().Err(err).Int64("local_id", rec.LocalID).Msg("confirmed record could not be removed")
			return e.finish(rep, Aborted, tracker, metrics.ResultError), derr
		}
		rep.Confirmed++
		e.metrics.Replayed()
		log.Debug().Int64("local_id", rec.LocalID).Msg("record replayed")
	}

	return e.finish(rep, Idle, tracker, metrics.ResultComplete), nil
}

// recordFailure updates replay bookkeeping and dead-letters the record when
// the rejection limit is reached.
func (e *Engine) recordFailure(ctx context.Context, log zerolog.Logger, rec movement.Record, cause error, rep *Report) error {
	permanent := remote.IsPermanentRejection(cause)
	failures, err := e.queue.RecordFailure(ctx, rec.LocalID, cause.Error(), permanent)
	if err != nil {
		return err
	}
	if !permanent || e.maxRejections <= 0 || failures.Rejections < e.maxRejections {
		return nil
	}

	if err := e.queue.DeadLetter(ctx, rec.LocalID, cause.Error()); err != nil {
		return err
	}
	rep.DeadLettered++
	e.metrics.DeadLettered()
	log.Warn().
		Int64("local_id", rec.LocalID).
		Int("rejections", failures.Rejections).
		Msg("record moved to dead letters")
	return nil
}

func (e *Engine) finish(rep Report, to State, tracker *metrics.Tracker, result string) Report {
	rep.Remaining = rep.Snapshot - rep.Confirmed - rep.DeadLettered
	rep.Finished = time.Now()
	e.setState(to)
	rep.State = to
	tracker.End(result)

	e.mu.Lock()
	e.last = rep
	e.mu.Unlock()
	return rep
}

// replayRequest builds the wire body for a queued record, tagging the
// reason with the offline marker.
func (e *Engine) replayRequest(rec movement.Record) remote.Request {
	m := rec.Movement
	m.Reason = OfflineMarker + m.Reason
	return remote.NewRequest(m, e.deviceID)
}
