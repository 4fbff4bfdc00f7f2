// Package submit implements the write path for stock movements: try the
// remote endpoint once, and fall back to the durable queue on any failure.
package submit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/stocksync/internal/metrics"
	"github.com/roach88/stocksync/internal/movement"
	"github.com/roach88/stocksync/internal/remote"
)

// Queue is the subset of the durable queue the submitter needs.
type Queue interface {
	Append(ctx context.Context, m movement.Movement) (int64, error)
	Count(ctx context.Context) (int, error)
}

// Sender delivers one movement to the remote endpoint.
type Sender interface {
	SendMovement(ctx context.Context, req remote.Request) (remote.Response, error)
}

// Connectivity reports the current online belief.
type Connectivity interface {
	IsOnline() bool
}

// Status is the terminal state of a submission.
type Status int

const (
	// Confirmed means the remote endpoint acknowledged the movement.
	Confirmed Status = iota
	// Queued means the movement is durably stored for a later drain.
	Queued
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case Confirmed:
		return "confirmed"
	case Queued:
		return "queued"
	default:
		return "unknown"
	}
}

// MarshalText renders the status in JSON output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Queue reasons recorded on Outcome.
const (
	ReasonOffline = "offline"
	ReasonBacklog = "backlog"
	ReasonFailed  = "send failed"
)

// Outcome describes what happened to a submitted movement.
type Outcome struct {
	Status   Status          `json:"status"`
	LocalID  int64           `json:"local_id,omitempty"`
	Response *remote.Response `json:"response,omitempty"`

	// Movement is the validated, normalized movement that was sent or queued.
	Movement movement.Movement `json:"movement"`

	// QueueReason says why a Queued movement was not sent.
	QueueReason string `json:"queue_reason,omitempty"`
	// Cause is the remote error that sent the movement to the queue.
	Cause error `json:"-"`
}

// Submitter accepts movements from the user.
//
// Only a ValidationError or a store error is returned as an error. Remote
// failures are absorbed: the movement is queued and Queued is returned.
type Submitter struct {
	queue     Queue
	sender    Sender
	conn      Connectivity
	validator *movement.Validator
	deviceID  string
	onQueued  func()
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithDeviceID sets the device id sent with immediate submissions.
func WithDeviceID(id string) Option {
	return func(s *Submitter) {
		s.deviceID = id
	}
}

// WithOnQueued registers a hook called after every successful enqueue.
// The app uses it to request a drain.
func WithOnQueued(fn func()) Option {
	return func(s *Submitter) {
		s.onQueued = fn
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Submitter) {
		s.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Submitter) {
		s.logger = l
	}
}

// WithClock overrides the capture time source.
func WithClock(now func() time.Time) Option {
	return func(s *Submitter) {
		s.now = now
	}
}

// New creates a Submitter.
func New(q Queue, sender Sender, conn Connectivity, opts ...Option) *Submitter {
	s := &Submitter{
		queue:     q,
		sender:    sender,
		conn:      conn,
		validator: movement.NewValidator(),
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates m and either delivers it or queues it.
//
//  1. Invalid movements are rejected; nothing is stored.
//  2. Offline: the network is skipped and the movement is queued.
//  3. Online with a non-empty queue: the movement is queued behind the
//     backlog so the remote endpoint sees movements in capture order.
//  4. Online with an empty queue: one attempt bounded by the sender timeout.
//     Success is Confirmed; any failure queues the movement.
func (s *Submitter) Submit(ctx context.Context, m movement.Movement) (Outcome, error) {
	m, err := s.validator.Validate(m)
	if err != nil {
		s.metrics.Submission(metrics.OutcomeInvalid)
		return Outcome{}, err
	}
	if m.CapturedAt.IsZero() {
		m.CapturedAt = s.now().UTC()
	}

	// Queue operations ignore cancellation so a movement accepted here is
	// never lost to a caller timeout.
	storeCtx := context.WithoutCancel(ctx)

	log := s.logger.With().Str("shop_id", m.ShopID).Str("article_id", m.ArticleID).Str("type", string(m.Kind)).Logger()

	if !s.conn.IsOnline() {
		return s.enqueue(storeCtx, log, m, ReasonOffline, nil)
	}

	pending, err := s.queue.Count(storeCtx)
	if err != nil {
		s.metrics.Submission(metrics.OutcomeFailed)
		return Outcome{}, fmt.Errorf("submit: %w", err)
	}
	if pending > 0 {
		return s.enqueue(storeCtx, log, m, ReasonBacklog, nil)
	}

	resp, err := s.sender.SendMovement(ctx, remote.NewRequest(m, s.deviceID))
	if err != nil {
		log.Warn().Err(err).Msg("immediate submission failed")
		return s.enqueue(storeCtx, log, m, ReasonFailed, err)
	}

	s.metrics.Submission(metrics.OutcomeConfirmed)
	log.Info().Int("status", resp.StatusCode).Msg("movement confirmed")
	return Outcome{Status: Confirmed, Response: &resp, Movement: m}, nil
}

func (s *Submitter) enqueue(ctx context.Context, log zerolog.Logger, m movement.Movement, reason string, cause error) (Outcome, error) {
	localID, err := s.queue.Append(ctx, m)
	if err != nil {
		s.metrics.Submission(metrics.OutcomeFailed)
		log.Error().Err(err).Msg("movement could not be queued")
		return Outcome{}, fmt.Errorf("submit: %w", err)
	}

	s.metrics.Submission(metrics.OutcomeQueued)
	log.Info().Int64("local_id", localID).Str("reason", reason).Msg("movement queued")

	if s.onQueued != nil {
		s.onQueued()
	}
	return Outcome{Status: Queued, LocalID: localID, QueueReason: reason, Cause: cause, Movement: m}, nil
}
