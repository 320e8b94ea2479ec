// Package conversation owns the visible state of a chat session and runs one
// analysis round-trip per submission.
package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"

	"github.com/Skufu/pillscope/internal/medicine"
)

//go:generate mockgen -destination=mock_analyzer_test.go -package=conversation . Analyzer

// DefaultTimeout bounds one analysis call.
const DefaultTimeout = 30 * time.Second

var (
	ErrEmptyInput    = errors.New("conversation: empty input")
	ErrBusy          = errors.New("conversation: a request is already in flight")
	ErrSessionClosed = errors.New("conversation: session closed")
	ErrTimeout       = errors.New("conversation: analysis timed out")
)

// Analyzer classifies one query.
type Analyzer interface {
	Analyze(ctx context.Context, query string) (medicine.Result, error)
}

// Turn summarizes one finished round-trip for diagnostics. It never carries
// transcript text.
type Turn struct {
	SessionID string
	Kind      Kind
	Latency   time.Duration
	Cause     string
	At        time.Time
}

// Recorder receives a Turn after every round-trip.
type Recorder interface {
	RecordTurn(ctx context.Context, t Turn) error
}

// Snapshot is a copy of the session state handed to a rendering layer.
type Snapshot struct {
	ID       string    `json:"id"`
	Phase    Phase     `json:"phase"`
	Input    string    `json:"input"`
	Thinking bool      `json:"thinking"`
	Messages []Message `json:"messages"`
}

// Option configures a Session.
type Option func(*Session)

// WithTimeout bounds each analysis call.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger used for failure causes.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder forwards a Turn to r after every round-trip.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// Session is the conversation state controller. All mutation goes through its
// methods; at most one analysis is in flight at a time.
type Session struct {
	id       string
	analyzer Analyzer
	timeout  time.Duration
	logger   *log.Logger
	recorder Recorder
	now      func() time.Time

	mu         sync.Mutex
	phase      Phase
	messages   []Message
	input      string
	thinking   bool
	closed     bool
	done       chan struct{}
	lastActive time.Time
}

// NewSession starts a session in the landing phase.
func NewSession(id string, analyzer Analyzer, opts ...Option) *Session {
	s := &Session{
		id:       id,
		analyzer: analyzer,
		timeout:  DefaultTimeout,
		logger:   log.Default(),
		now:      time.Now,
		phase:    PhaseLanding,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastActive = s.now()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// SetInput records a text-change event from the rendering layer.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = text
	s.lastActive = s.now()
}

// Thinking reports whether an analysis is in flight.
func (s *Session) Thinking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thinking
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:       s.id,
		Phase:    s.phase,
		Input:    s.input,
		Thinking: s.thinking,
		Messages: append(make([]Message, 0, len(s.messages)), s.messages...),
	}
}

// Submit appends the user's message, clears the input, raises the thinking flag
// and starts the analysis in the background. The returned channel is closed once
// the assistant message has been appended. Blank text is a no-op reported as
// ErrEmptyInput, and a submission while thinking is refused with ErrBusy.
//
// The analysis outlives ctx cancellation but not the session timeout.
func (s *Session) Submit(ctx context.Context, text string) (<-chan struct{}, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.thinking {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	now := s.now()
	if s.phase == PhaseLanding {
		s.phase = PhaseChat
	}
	s.messages = append(s.messages, userMessage(text, now))
	s.input = ""
	s.thinking = true
	s.lastActive = now
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	go s.run(context.WithoutCancel(ctx), text, done)
	return done, nil
}

type outcome struct {
	res medicine.Result
	err error
}

func (s *Session) run(ctx context.Context, query string, done chan struct{}) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	o := s.analyze(ctx, query)
	now := s.now()

	var msg Message
	if o.err != nil {
		s.logger.Error("analysis failed", "session", s.id, "err", o.err)
		msg = errorMessage(now)
	} else {
		msg = assistantMessage(o.res, now)
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.thinking = false
	s.lastActive = now
	s.mu.Unlock()
	close(done)

	s.record(Turn{
		SessionID: s.id,
		Kind:      msg.Kind,
		Latency:   now.Sub(start),
		Cause:     causeOf(o.err),
		At:        now,
	})
}

// analyze runs the analyzer on its own goroutine so a call that ignores ctx
// still cannot hold the thinking flag past the deadline.
func (s *Session) analyze(ctx context.Context, query string) outcome {
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: errors.Newf("analyzer panic: %v", r)}
			}
		}()
		res, err := s.analyzer.Analyze(ctx, query)
		ch <- outcome{res: res, err: err}
	}()

	select {
	case o := <-ch:
		return o
	case <-ctx.Done():
		return outcome{err: errors.Mark(errors.Wrapf(ctx.Err(), "after %s", s.timeout), ErrTimeout)}
	}
}

func (s *Session) record(t Turn) {
	if s.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.recorder.RecordTurn(ctx, t); err != nil {
		s.logger.Warn("record turn failed", "session", s.id, "err", err)
	}
}

func causeOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Wait blocks until no analysis is in flight or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the session. Later submissions fail with ErrSessionClosed; a
// request already in flight still settles.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// idleSince reports the last activity time, and false while a request is in flight.
func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive, !s.thinking
}
