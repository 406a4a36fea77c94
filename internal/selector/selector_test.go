package selector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nbenliogludev/go-chat-agent-tester/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeElement struct {
	query    string
	editable bool
	clickErr error

	clicks  int
	filled  []string
	pressed []string
}

func (e *fakeElement) Click(context.Context) error { e.clicks++; return e.clickErr }
func (e *fakeElement) Fill(_ context.Context, text string) error {
	e.filled = append(e.filled, text)
	return nil
}
func (e *fakeElement) Press(_ context.Context, key string) error {
	e.pressed = append(e.pressed, key)
	return nil
}
func (e *fakeElement) Editable(context.Context) bool { return e.editable }

// fakeLocator answers from a fixed table; unknown queries are not visible.
type fakeLocator struct {
	visible map[string]*fakeElement
	failing map[string]error
	asked   []string
}

func (l *fakeLocator) FirstVisible(_ context.Context, q string, _ time.Duration) (Element, bool, error) {
	l.asked = append(l.asked, q)
	if err, ok := l.failing[q]; ok {
		return nil, false, err
	}
	if el, ok := l.visible[q]; ok {
		return el, true, nil
	}
	return nil, false, nil
}

func noPause(context.Context, time.Duration) error { return nil }

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("first visible wins in list order", func(t *testing.T) {
		b, c := &fakeElement{query: "b"}, &fakeElement{query: "c"}
		loc := &fakeLocator{visible: map[string]*fakeElement{"b": b, "c": c}}

		m, ok, err := Resolve(ctx, loc, []string{"a", "b", "c"}, time.Second, nil)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Same(t, b, m.Element)
		assert.Equal(t, 1, m.Index)
		assert.Equal(t, []string{"a", "b"}, loc.asked)
	})

	t.Run("erroring candidates are skipped", func(t *testing.T) {
		c := &fakeElement{query: "c"}
		loc := &fakeLocator{
			visible: map[string]*fakeElement{"c": c},
			failing: map[string]error{"a": errors.New("invalid selector"), "b": errors.New("detached")},
		}
		core, logs := observer.New(zapcore.DebugLevel)

		m, ok, err := Resolve(ctx, loc, []string{"a", "b", "c"}, time.Second, zap.New(core))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "c", m.Query)
		assert.Equal(t, 2, logs.FilterMessage("Candidate failed").Len())
	})

	t.Run("exhausted list is not found, not an error", func(t *testing.T) {
		loc := &fakeLocator{failing: map[string]error{"a": errors.New("boom")}}
		_, ok, err := Resolve(ctx, loc, []string{"a", "b"}, time.Second, nil)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty list", func(t *testing.T) {
		_, ok, err := Resolve(ctx, &fakeLocator{}, nil, time.Second, nil)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, ok, err := Resolve(cctx, &fakeLocator{}, []string{"a"}, time.Second, nil)
		assert.False(t, ok)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestExpandAgent(t *testing.T) {
	got := ExpandAgent([]string{
		`button:has-text("{{AGENT}}")`,
		`[data-testid*="{{AGENT_SLUG}}"]`,
		`#plain`,
	}, "Prompt  Coach")

	assert.Equal(t, []string{
		`button:has-text("Prompt  Coach")`,
		`[data-testid*="prompt-coach"]`,
		`#plain`,
	}, got)

	assert.Equal(t, []string{`text="Say \"hi\""`}, ExpandAgent([]string{`text="{{AGENT}}"`}, `Say "hi"`))
	assert.Equal(t, "data-analyst", Slug(" Data\tAnalyst "))
}

func newTestSelector(loc Locator) *AgentSelector {
	cfg := config.NewDefaultConfig().Selectors
	s := NewAgentSelector(loc, cfg, nil)
	s.pause = noPause
	return s
}

func TestAgentSelector_Flow(t *testing.T) {
	ctx := context.Background()
	store := &fakeElement{}
	search := &fakeElement{}
	card := &fakeElement{}
	input := &fakeElement{editable: true}

	loc := &fakeLocator{visible: map[string]*fakeElement{
		`a:has-text("All agents")`:      store,
		`input[type="search"]`:          search,
		`button:has-text("Researcher")`: card,
		`[contenteditable="true"]`:      input,
	}}
	s := newTestSelector(loc)

	ok, err := s.OpenAgentStore(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, store.clicks)

	ok, err = s.SearchAgent(ctx, "Researcher")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"Researcher"}, search.filled)
	assert.Equal(t, []string{"Enter"}, search.pressed)

	ok, err = s.SelectAgent(ctx, "Researcher")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, card.clicks)

	el, ok, err := s.FindChatInput(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, input, el)
}

func TestAgentSelector_NotFoundIsNotAnError(t *testing.T) {
	ctx := context.Background()
	s := newTestSelector(&fakeLocator{})

	ok, err := s.OpenAgentStore(ctx)
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.SelectAgent(ctx, "Nobody")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.FindChatInput(ctx)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestAgentSelector_ClickFailureMovesOn(t *testing.T) {
	broken := &fakeElement{clickErr: errors.New("element is not attached")}
	working := &fakeElement{}
	loc := &fakeLocator{visible: map[string]*fakeElement{
		`div:has-text("Analyst"):not(:has-text("search")):visible`: broken,
		`text="Analyst"`:                                           working,
	}}
	s := newTestSelector(loc)

	ok, err := s.SelectAgent(context.Background(), "Analyst")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, broken.clicks)
	assert.Equal(t, 1, working.clicks)
}
