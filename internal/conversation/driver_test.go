package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nbenliogludev/go-chat-agent-tester/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var canned = []string{
	"Can you provide more details about that?",
	"How would I implement this in practice?",
	"Are there alternative approaches to consider?",
	"Can you summarize the key takeaways?",
	"Thank you! Is there anything else important I should know?",
}

type fakePage struct {
	mu         sync.Mutex
	captures   []string
	submitted  []string
	settles    int
	submitErr  map[int]error // keyed by submission number, 1-based
	captureErr map[string]error
	settleErr  error
	onSubmit   func(n int)
}

func (p *fakePage) Capture(_ context.Context, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for prefix, err := range p.captureErr {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			return "", err
		}
	}
	p.captures = append(p.captures, name)
	return "/shots/" + name + ".png", nil
}

func (p *fakePage) Submit(_ context.Context, msg string) error {
	p.mu.Lock()
	n := len(p.submitted) + 1
	err := p.submitErr[n]
	hook := p.onSubmit
	if err == nil {
		p.submitted = append(p.submitted, msg)
	}
	p.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return err
}

func (p *fakePage) WaitStable(ctx context.Context) error {
	p.mu.Lock()
	p.settles++
	err := p.settleErr
	p.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// fakeAdvisor continues while turn < stopAt and echoes the turn number.
type fakeAdvisor struct {
	credential bool
	stopAt     int
	empty      bool

	classified []int
	histories  []string
	images     [][]byte
}

func (a *fakeAdvisor) HasCredential() bool { return a.credential }

func (a *fakeAdvisor) ClassifyContinuation(_ context.Context, image []byte, turn int) bool {
	a.classified = append(a.classified, turn)
	a.images = append(a.images, image)
	return turn < a.stopAt
}

func (a *fakeAdvisor) GenerateNextMessage(_ context.Context, _ []byte, history string, turn int) string {
	a.histories = append(a.histories, history)
	if a.empty {
		return "  "
	}
	return fmt.Sprintf("reply %d", turn)
}

type countingObserver struct {
	turns     []int
	fallbacks []string
}

func (o *countingObserver) TurnCompleted(_ Mode, turn int, _ TurnResult) { o.turns = append(o.turns, turn) }
func (o *countingObserver) DecisionFallback(stage string)                { o.fallbacks = append(o.fallbacks, stage) }

func fixedClock() func() time.Time {
	t := time.UnixMilli(1_700_000_000_000)
	return func() time.Time {
		t = t.Add(time.Millisecond)
		return t
	}
}

func newDriver(page Page, adv *fakeAdvisor, maxTurns int) *Driver {
	opts := Options{
		MaxTurns:        maxTurns,
		FallbackTurnCap: 4,
		CannedResponses: canned,
		Now:             fixedClock(),
		ReadFile:        func(string) ([]byte, error) { return []byte("png"), nil },
	}
	var a llm.Client
	if adv != nil {
		a = adv
	}
	return NewDriver(page, a, opts, zap.NewNop())
}

func assertScreenshotInvariant(t *testing.T, res *Result) {
	t.Helper()
	assert.Len(t, res.State.ScreenshotPaths, res.State.TurnIndex+1)
	assert.LessOrEqual(t, res.State.TurnIndex, res.State.MaxTurns)
}

func TestRun_FallbackPolicy(t *testing.T) {
	page := &fakePage{}
	res, err := newDriver(page, nil, 5).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ModeFallback, res.Mode)
	assert.Equal(t, EndNatural, res.EndReason)
	assert.Equal(t, 4, res.State.TurnIndex)
	assert.Equal(t, canned[:3], page.submitted)
	assert.Equal(t, []string{
		"Turn 1: " + canned[0],
		"Turn 2: " + canned[1],
		"Turn 3: " + canned[2],
	}, res.State.Context)
	assertScreenshotInvariant(t, res)
	assert.Equal(t, "conversation-turn-1-1700000000001", page.captures[0])
	assert.Contains(t, page.captures[len(page.captures)-1], "conversation-final-")
	assert.Equal(t, 4, page.settles)
}

func TestRun_FallbackIsDeterministic(t *testing.T) {
	first := &fakePage{}
	second := &fakePage{}
	_, err := newDriver(first, &fakeAdvisor{credential: false}, 5).Run(context.Background())
	require.NoError(t, err)
	_, err = newDriver(second, &fakeAdvisor{credential: false}, 5).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.submitted, second.submitted)
	assert.Equal(t, first.captures, second.captures)
}

func TestRun_LLMPolicy(t *testing.T) {
	page := &fakePage{}
	adv := &fakeAdvisor{credential: true, stopAt: 3}
	obs := &countingObserver{}

	res, err := newDriver(page, adv, 5).WithObserver(obs).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ModeLLM, res.Mode)
	assert.Equal(t, EndNatural, res.EndReason)
	assert.Equal(t, 3, res.State.TurnIndex)
	assert.Equal(t, []string{"reply 1", "reply 2"}, page.submitted)
	assert.Equal(t, []string{"reply 1", "reply 2"}, res.Messages)
	assert.Equal(t, []string{"", "Turn 1: reply 1"}, adv.histories)
	assert.Equal(t, []int{1, 2, 3}, obs.turns)
	assert.Equal(t, []byte("png"), adv.images[0])
	assertScreenshotInvariant(t, res)
}

func TestRun_HardCapAppliesToEveryPolicy(t *testing.T) {
	page := &fakePage{}
	adv := &fakeAdvisor{credential: true, stopAt: 100}

	res, err := newDriver(page, adv, 5).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, EndLimit, res.EndReason)
	assert.Equal(t, 5, res.State.TurnIndex)
	assert.Len(t, page.submitted, 4)
	// Turn 5 is decided locally and never reaches the advisor.
	assert.Equal(t, []int{1, 2, 3, 4}, adv.classified)
	assertScreenshotInvariant(t, res)
}

func TestRun_MaxTurnsBelowFallbackCap(t *testing.T) {
	page := &fakePage{}
	res, err := newDriver(page, nil, 2).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EndLimit, res.EndReason)
	assert.Equal(t, 2, res.State.TurnIndex)
	assert.Len(t, page.submitted, 1)
	assertScreenshotInvariant(t, res)
}

func TestRun_SubmitFailureStopsWithoutRetry(t *testing.T) {
	page := &fakePage{submitErr: map[int]error{2: errors.New("element detached")}}
	res, err := newDriver(page, nil, 5).Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubmitFailed)
	assert.ErrorContains(t, err, "element detached")
	require.NotNil(t, res)
	assert.Equal(t, EndSubmitFailed, res.EndReason)
	assert.Equal(t, 2, res.State.TurnIndex)
	assert.Equal(t, []string{canned[0]}, page.submitted)
	assert.Len(t, res.State.Context, 1)
	assertScreenshotInvariant(t, res)
}

func TestRun_UnreadableScreenshotDegradesOneTurn(t *testing.T) {
	page := &fakePage{}
	adv := &fakeAdvisor{credential: true, stopAt: 3}
	obs := &countingObserver{}
	d := newDriver(page, adv, 5).WithObserver(obs)

	reads := 0
	d.opts.ReadFile = func(string) ([]byte, error) {
		reads++
		if reads == 1 {
			return nil, errors.New("permission denied")
		}
		return []byte("png"), nil
	}

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModeLLM, res.Mode)
	assert.Equal(t, []string{canned[0], "reply 2"}, page.submitted)
	assert.Equal(t, []int{2, 3}, adv.classified)
	assert.Equal(t, []string{"screenshot"}, obs.fallbacks)
	assertScreenshotInvariant(t, res)
}

func TestRun_EmptyGeneratedMessageUsesCannedReply(t *testing.T) {
	page := &fakePage{}
	adv := &fakeAdvisor{credential: true, stopAt: 2, empty: true}
	res, err := newDriver(page, adv, 5).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{canned[0]}, res.Messages)
}

func TestRun_SettleTimeoutIsOnlyAWarning(t *testing.T) {
	page := &fakePage{settleErr: errors.New("page did not settle")}
	core, logs := observer.New(zapcore.WarnLevel)
	d := NewDriver(page, nil, Options{MaxTurns: 5, FallbackTurnCap: 2, CannedResponses: canned}, zap.New(core))

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.State.TurnIndex)
	assert.Equal(t, 2, logs.FilterMessage("Answer did not settle, capturing anyway").Len())
	assertScreenshotInvariant(t, res)
}

func TestRun_CaptureFailure(t *testing.T) {
	page := &fakePage{captureErr: map[string]error{"conversation-turn-2": errors.New("disk full")}}
	res, err := newDriver(page, nil, 5).Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "capture turn 2")
	assert.Len(t, res.State.ScreenshotPaths, 1)
}

func TestRun_CancelledStillTakesFinalScreenshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	page := &fakePage{onSubmit: func(n int) {
		if n == 1 {
			cancel()
		}
	}}

	res, err := newDriver(page, nil, 5).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, EndCancelled, res.EndReason)
	assert.Contains(t, page.captures[len(page.captures)-1], "conversation-final-")
	assertScreenshotInvariant(t, res)
}
