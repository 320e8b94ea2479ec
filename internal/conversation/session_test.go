package conversation

import (
	"context"
	"io"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"google.golang.org/genai"

	"github.com/Skufu/pillscope/internal/analysis"
	"github.com/Skufu/pillscope/internal/medicine"
)

// gatedAnalyzer blocks every call until release is closed.
type gatedAnalyzer struct {
	release chan struct{}
	res     medicine.Result
	err     error
}

func (g *gatedAnalyzer) Analyze(ctx context.Context, query string) (medicine.Result, error) {
	<-g.release
	return g.res, g.err
}

// stuckAnalyzer ignores ctx and never returns on its own.
type stuckAnalyzer struct{ block chan struct{} }

func (s stuckAnalyzer) Analyze(ctx context.Context, query string) (medicine.Result, error) {
	<-s.block
	return medicine.Result{}, nil
}

type panicAnalyzer struct{}

func (panicAnalyzer) Analyze(ctx context.Context, query string) (medicine.Result, error) {
	panic("boom")
}

// textGenerator returns the same raw reply for every request.
type textGenerator string

func (g textGenerator) Generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	return string(g), nil
}

func (g textGenerator) GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {}
}

type recorderFunc func(ctx context.Context, t Turn) error

func (f recorderFunc) RecordTurn(ctx context.Context, t Turn) error { return f(ctx, t) }

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("analysis did not settle")
	}
}

func TestSubmitAppendsUserMessageBeforeCall(t *testing.T) {
	g := &gatedAnalyzer{
		release: make(chan struct{}),
		res:     medicine.Result{Kind: medicine.ClassConversation, Reply: "Take it with food."},
	}
	s := NewSession("s1", g, WithLogger(quietLogger()))
	s.SetInput("ibuprofen?")

	done, err := s.Submit(context.Background(), "ibuprofen?")
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, PhaseChat, snap.Phase)
	assert.True(t, snap.Thinking)
	assert.Empty(t, snap.Input)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, OriginUser, snap.Messages[0].Origin)
	assert.Equal(t, KindInput, snap.Messages[0].Kind)
	assert.Equal(t, "ibuprofen?", snap.Messages[0].Text)

	close(g.release)
	waitDone(t, done)

	snap = s.Snapshot()
	assert.False(t, snap.Thinking)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, OriginAssistant, snap.Messages[1].Origin)
	assert.Equal(t, KindConversation, snap.Messages[1].Kind)
	assert.Equal(t, "Take it with food.", snap.Messages[1].Text)
	assert.Nil(t, snap.Messages[1].Sections())
}

func TestSubmitBlankIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := NewMockAnalyzer(ctrl)
	s := NewSession("s1", a)

	for _, text := range []string{"", "   ", "\n\t "} {
		done, err := s.Submit(context.Background(), text)
		assert.ErrorIs(t, err, ErrEmptyInput)
		assert.Nil(t, done)
	}

	snap := s.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.NotNil(t, snap.Messages)
	assert.Equal(t, PhaseLanding, snap.Phase)
	assert.False(t, snap.Thinking)
}

func TestSubmitMedicineRecord(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := NewMockAnalyzer(ctrl)
	a.EXPECT().Analyze(gomock.Any(), "paracetamol").Return(medicine.Result{
		Kind:     medicine.ClassMedicine,
		Medicine: &medicine.Record{Name: "Paracetamol", Description: "Pain reliever"},
	}, nil)
	s := NewSession("s1", a)

	done, err := s.Submit(context.Background(), "paracetamol")
	require.NoError(t, err)
	waitDone(t, done)

	msgs := s.Snapshot().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, KindMedicine, msgs[1].Kind)
	assert.Equal(t, []medicine.Section{
		{Label: "Name", Body: "Paracetamol"},
		{Label: "Description", Body: "Pain reliever"},
	}, msgs[1].Sections())
}

func TestSubmitUnparsableReplyBecomesErrorMessage(t *testing.T) {
	client, err := analysis.NewClient(textGenerator("this is not json"))
	require.NoError(t, err)
	s := NewSession("s1", client, WithLogger(quietLogger()))

	done, err := s.Submit(context.Background(), "aspirin")
	require.NoError(t, err)
	waitDone(t, done)

	snap := s.Snapshot()
	assert.False(t, snap.Thinking)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, KindError, snap.Messages[1].Kind)
	assert.Equal(t, FailureText, snap.Messages[1].Text)
}

func TestSubmitServiceErrorHidesCause(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := NewMockAnalyzer(ctrl)
	a.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return(medicine.Result{}, errors.New("401 invalid api key"))
	s := NewSession("s1", a, WithLogger(quietLogger()))

	done, err := s.Submit(context.Background(), "aspirin")
	require.NoError(t, err)
	waitDone(t, done)

	last := s.Snapshot().Messages[1]
	assert.Equal(t, FailureText, last.Text)
	assert.NotContains(t, last.Text, "api key")
}

func TestResubmitAccumulatesInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := NewMockAnalyzer(ctrl)
	gomock.InOrder(
		a.EXPECT().Analyze(gomock.Any(), "aspirin").Return(medicine.Result{Kind: medicine.ClassConversation, Reply: "first"}, nil),
		a.EXPECT().Analyze(gomock.Any(), "aspirin").Return(medicine.Result{Kind: medicine.ClassConversation, Reply: "second"}, nil),
	)
	s := NewSession("s1", a)

	for range 2 {
		done, err := s.Submit(context.Background(), "aspirin")
		require.NoError(t, err)
		waitDone(t, done)
	}

	msgs := s.Snapshot().Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, []string{"aspirin", "first", "aspirin", "second"},
		[]string{msgs[0].Text, msgs[1].Text, msgs[2].Text, msgs[3].Text})
}

func TestPhaseChangesOnlyOnFirstSubmission(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := NewMockAnalyzer(ctrl)
	a.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return(medicine.Result{}, errors.New("down")).Times(2)
	s := NewSession("s1", a, WithLogger(quietLogger()))
	assert.Equal(t, PhaseLanding, s.Snapshot().Phase)

	done, err := s.Submit(context.Background(), "one")
	require.NoError(t, err)
	waitDone(t, done)
	assert.Equal(t, PhaseChat, s.Snapshot().Phase)

	done, err = s.Submit(context.Background(), "two")
	require.NoError(t, err)
	waitDone(t, done)
	assert.Equal(t, PhaseChat, s.Snapshot().Phase)
}

func TestSubmitWhileThinkingIsRefused(t *testing.T) {
	g := &gatedAnalyzer{release: make(chan struct{}), res: medicine.Result{Kind: medicine.ClassConversation, Reply: "ok"}}
	s := NewSession("s1", g)

	done, err := s.Submit(context.Background(), "first")
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Len(t, s.Snapshot().Messages, 1)

	close(g.release)
	waitDone(t, done)
	assert.Len(t, s.Snapshot().Messages, 2)
}

func TestSubmitTimeoutClearsThinking(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	s := NewSession("s1", stuckAnalyzer{block: block}, WithTimeout(20*time.Millisecond), WithLogger(quietLogger()))

	done, err := s.Submit(context.Background(), "aspirin")
	require.NoError(t, err)
	waitDone(t, done)

	snap := s.Snapshot()
	assert.False(t, snap.Thinking)
	assert.Equal(t, FailureText, snap.Messages[1].Text)
}

func TestSubmitPanicBecomesErrorMessage(t *testing.T) {
	s := NewSession("s1", panicAnalyzer{}, WithLogger(quietLogger()))

	done, err := s.Submit(context.Background(), "aspirin")
	require.NoError(t, err)
	waitDone(t, done)

	assert.Equal(t, KindError, s.Snapshot().Messages[1].Kind)
	assert.False(t, s.Thinking())
}

func TestSubmitOutlivesCallerContext(t *testing.T) {
	g := &gatedAnalyzer{release: make(chan struct{}), res: medicine.Result{Kind: medicine.ClassConversation, Reply: "still here"}}
	s := NewSession("s1", g)

	ctx, cancel := context.WithCancel(context.Background())
	done, err := s.Submit(ctx, "aspirin")
	require.NoError(t, err)
	cancel()
	close(g.release)
	waitDone(t, done)

	assert.Equal(t, "still here", s.Snapshot().Messages[1].Text)
}

func TestRecorderReceivesTurn(t *testing.T) {
	var (
		mu    sync.Mutex
		turns []Turn
		got   = make(chan struct{})
	)
	rec := recorderFunc(func(ctx context.Context, turn Turn) error {
		mu.Lock()
		turns = append(turns, turn)
		mu.Unlock()
		close(got)
		return nil
	})

	ctrl := gomock.NewController(t)
	a := NewMockAnalyzer(ctrl)
	a.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return(medicine.Result{}, errors.New("quota exceeded"))
	s := NewSession("s1", a, WithRecorder(rec), WithLogger(quietLogger()))

	_, err := s.Submit(context.Background(), "aspirin")
	require.NoError(t, err)

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("turn not recorded")
	}
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, turns, 1)
	assert.Equal(t, "s1", turns[0].SessionID)
	assert.Equal(t, KindError, turns[0].Kind)
	assert.Contains(t, turns[0].Cause, "quota exceeded")
}

func TestWait(t *testing.T) {
	g := &gatedAnalyzer{release: make(chan struct{}), res: medicine.Result{Kind: medicine.ClassConversation, Reply: "ok"}}
	s := NewSession("s1", g)
	require.NoError(t, s.Wait(context.Background()))

	_, err := s.Submit(context.Background(), "aspirin")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)

	close(g.release)
	require.NoError(t, s.Wait(context.Background()))
	assert.False(t, s.Thinking())
}

func TestClosedSessionRefusesSubmit(t *testing.T) {
	s := NewSession("s1", panicAnalyzer{})
	s.Close()

	_, err := s.Submit(context.Background(), "aspirin")
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Empty(t, s.Snapshot().Messages)
}
