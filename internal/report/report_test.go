package report

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var baseTime = time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func sampleSummary(dir string) RunSummary {
	return RunSummary{
		RunID:            "6f1c2d3e-aaaa-bbbb-cccc-0123456789ab",
		TestTitle:        "Researcher - market sizing",
		TestName:         "researcher",
		AgentName:        "Researcher",
		InitialPrompt:    "Estimate the EV charger market in Europe.",
		Timestamp:        baseTime,
		DurationMs:       95_400,
		Status:           StatusPassed,
		ConversationMode: "llm-powered",
		EndReason:        "ended",
		Turns:            2,
		Messages:         []string{"Can you break it down by country?"},
		Steps:            []string{"Open agent store", "Search agent", "Select agent"},
		Artifacts: Artifacts{
			Screenshots: []string{
				filepath.Join(dir, "shots", "conversation-turn-1.png"),
				filepath.Join(dir, "shots", "conversation-final.png"),
			},
		},
		TestConfig: TestConfig{
			Browser:              "Edge with existing session",
			LLMAnalysis:          true,
			MaxConversationTurns: 5,
			Model:                "gpt-4o",
		},
	}
}

func TestFileName(t *testing.T) {
	sum := RunSummary{RunID: "6f1c2d3e-aaaa", Timestamp: baseTime}
	assert.Equal(t, "conversation-summary-2025-03-14T09-26-53-589Z-6f1c2d3e.json", FileName(sum))

	short := FileName(RunSummary{RunID: "x", Timestamp: baseTime})
	assert.True(t, strings.HasPrefix(short, "conversation-summary-2025-03-14T09-26-53-589Z-"))
	assert.Len(t, short, len("conversation-summary-2025-03-14T09-26-53-589Z-")+8+len(".json"))
}

func TestStore_WriteLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	store := NewStore(filepath.Join(root, "summaries"))
	in := sampleSummary(root)

	path, err := store.Write(in)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"../shots/conversation-turn-1.png"`)
	assert.Contains(t, string(raw), `"screenshotsCount": 2`)
	assert.Contains(t, string(raw), `"runId"`)

	out, err := store.Load(path)
	require.NoError(t, err)
	assert.True(t, in.Timestamp.Equal(out.Timestamp))
	assert.Equal(t, in.Artifacts.Screenshots, out.Artifacts.Screenshots)
	assert.Equal(t, 2, out.Artifacts.ScreenshotsCount)
	assert.Equal(t, in.Messages, out.Messages)
	assert.Equal(t, in.TestConfig, out.TestConfig)
	assert.Equal(t, StatusPassed, out.Status)
}

func TestStore_WriteNeverOverwrites(t *testing.T) {
	store := NewStore(t.TempDir())
	sum := sampleSummary(store.Dir())

	_, err := store.Write(sum)
	require.NoError(t, err)
	_, err = store.Write(sum)
	assert.ErrorIs(t, err, os.ErrExist)
}

func TestStore_NilMessagesWrittenAsEmptyList(t *testing.T) {
	store := NewStore(t.TempDir())
	sum := sampleSummary(store.Dir())
	sum.Messages = nil

	path, err := store.Write(sum)
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"messages": []`)
}

func TestStore_Latest(t *testing.T) {
	store := NewStore(t.TempDir())

	_, _, err := store.Latest()
	assert.ErrorIs(t, err, ErrNoSummary)

	older := sampleSummary(store.Dir())
	older.AgentName = "Older"
	newer := sampleSummary(store.Dir())
	newer.AgentName = "Newer"
	newer.Timestamp = baseTime.Add(time.Second)

	_, err = store.Write(newer)
	require.NoError(t, err)
	_, err = store.Write(older)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.json"), []byte("{}"), 0o644))

	got, path, err := store.Latest()
	require.NoError(t, err)
	assert.Equal(t, "Newer", got.AgentName)
	assert.Equal(t, store.Dir(), filepath.Dir(path))
}

func TestStore_LatestMissingDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope"))
	_, _, err := store.Latest()
	assert.ErrorIs(t, err, ErrNoSummary)
}

func TestStore_LoadNormalizesStatus(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conversation-summary-x.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"status":"flaky","artifacts":{"screenshots":[]}}`), 0o644))

	sum, err := NewStore(dir).Load(path)
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, sum.Status)
}

func newGenerator(t *testing.T, store *Store, outputs ...string) *Generator {
	t.Helper()
	g, err := NewGenerator(store, "", outputs, zaptest.NewLogger(t))
	require.NoError(t, err)
	return g
}

func TestRender_TwoScreenshots(t *testing.T) {
	root := t.TempDir()
	g := newGenerator(t, NewStore(root))
	sum := sampleSummary(root)

	page := g.Render(sum)

	assert.Equal(t, 2, strings.Count(page, `class="screenshot-item"`))
	assert.Contains(t, page, "Conversation Turn 1")
	assert.Contains(t, page, "Conversation Turn 2")
	assert.NotContains(t, page, "Conversation Turn 3")
	assert.Contains(t, page, "file://"+filepath.ToSlash(sum.Artifacts.Screenshots[0]))
	assert.NotContains(t, page, "{{", "every token is replaced")
}

func TestRender_Fields(t *testing.T) {
	root := t.TempDir()
	g := newGenerator(t, NewStore(root))
	page := g.Render(sampleSummary(root))

	assert.Contains(t, page, `<span class="badge passed">PASSED</span>`)
	assert.Contains(t, page, "1m 35s")
	assert.Contains(t, page, "100%")
	assert.Contains(t, page, "llm-powered (gpt-4o)")
	assert.Contains(t, page, "LLM Follow-up 1")
	assert.Contains(t, page, "2025-03-14 09:26:53 UTC")
	assert.Contains(t, page, "09:25:18", "gallery times count from the run start")
	assert.Contains(t, page, "09:25:48")
	assert.Contains(t, page, "No video was recorded")
}

func TestRender_Idempotent(t *testing.T) {
	root := t.TempDir()
	g := newGenerator(t, NewStore(root))
	sum := sampleSummary(root)
	assert.Equal(t, g.Render(sum), g.Render(sum))
}

func TestRender_EscapesFreeText(t *testing.T) {
	root := t.TempDir()
	g := newGenerator(t, NewStore(root))
	sum := sampleSummary(root)
	sum.InitialPrompt = `<script>alert("x")</script> {{RUN_ID}}`
	sum.Status = StatusFailed

	page := g.Render(sum)
	assert.NotContains(t, page, `<script>alert`)
	assert.Contains(t, page, "&lt;script&gt;")
	assert.Contains(t, page, "{{RUN_ID}}", "values are not re-expanded")
	assert.Contains(t, page, "0%")
	assert.Contains(t, page, `badge failed`)
}

func TestRender_NoScreenshotsOrMessages(t *testing.T) {
	root := t.TempDir()
	g := newGenerator(t, NewStore(root))
	sum := sampleSummary(root)
	sum.Artifacts.Screenshots = nil
	sum.Messages = nil
	sum.Status = "weird"
	sum.Artifacts.Video = filepath.Join(root, "video.webm")

	page := g.Render(sum)
	assert.Zero(t, strings.Count(page, `class="screenshot-item"`))
	assert.Contains(t, page, "No screenshots captured")
	assert.Contains(t, page, `badge unknown`)
	assert.Contains(t, page, "<video")
}

func TestFormatDuration(t *testing.T) {
	tests := map[int64]string{
		0:       "N/A",
		4_200:   "4s",
		59_000:  "59s",
		60_000:  "1m 0s",
		125_000: "2m 5s",
	}
	for ms, want := range tests {
		assert.Equal(t, want, FormatDuration(ms), "ms=%d", ms)
	}
}

func TestGenerate_WritesAllOutputs(t *testing.T) {
	root := t.TempDir()
	store := NewStore(filepath.Join(root, "summaries"))
	_, err := store.Write(sampleSummary(root))
	require.NoError(t, err)

	outputs := []string{
		filepath.Join(root, "test-results", "report.html"),
		filepath.Join(root, "report.html"),
	}
	g := newGenerator(t, store, outputs...)

	written, sum, err := g.Generate()
	require.NoError(t, err)
	assert.Equal(t, outputs, written)
	assert.Equal(t, "Researcher", sum.AgentName)

	first, err := os.ReadFile(outputs[0])
	require.NoError(t, err)
	second, err := os.ReadFile(outputs[1])
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, strings.Count(string(first), `class="screenshot-item"`))
}

func TestGenerate_RerunIsByteIdentical(t *testing.T) {
	root := t.TempDir()
	store := NewStore(filepath.Join(root, "summaries"))
	_, err := store.Write(sampleSummary(root))
	require.NoError(t, err)

	out := filepath.Join(root, "report.html")
	g := newGenerator(t, store, out)

	_, _, err = g.Generate()
	require.NoError(t, err)
	first, err := os.ReadFile(out)
	require.NoError(t, err)

	_, _, err = g.Generate()
	require.NoError(t, err)
	second, err := os.ReadFile(out)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGenerate_NoSummary(t *testing.T) {
	g := newGenerator(t, NewStore(t.TempDir()), filepath.Join(t.TempDir(), "r.html"))
	_, _, err := g.Generate()
	assert.ErrorIs(t, err, ErrNoSummary)
}

func TestNewGenerator_CustomTemplate(t *testing.T) {
	root := t.TempDir()
	tpl := filepath.Join(root, "tpl.html")
	require.NoError(t, os.WriteFile(tpl, []byte("<h1>{{TEST_TITLE}}</h1><p>{{SCREENSHOT_COUNT}}</p>"), 0o644))

	g, err := NewGenerator(NewStore(root), tpl, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Researcher - market sizing</h1><p>2</p>", g.Render(sampleSummary(root)))

	_, err = NewGenerator(NewStore(root), filepath.Join(root, "missing.html"), nil, nil)
	assert.Error(t, err)
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleSummary(t.TempDir()))
	assert.Contains(t, md, "# Researcher - market sizing")
	assert.Contains(t, md, "**Status:** PASSED")
	assert.Contains(t, md, "1. Can you break it down by country?")
	assert.Contains(t, md, "- Screenshots: 2")
}

func TestOpen(t *testing.T) {
	err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.html"))
	assert.ErrorIs(t, err, ErrReportMissing)

	var opened string
	orig := opener
	opener = func(path string) *exec.Cmd {
		opened = path
		return exec.Command("true")
	}
	t.Cleanup(func() { opener = orig })

	report := filepath.Join(t.TempDir(), "report.html")
	require.NoError(t, os.WriteFile(report, []byte("<html></html>"), 0o644))
	require.NoError(t, Open(context.Background(), report))
	assert.Equal(t, report, opened)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Open(ctx, report), context.Canceled)
}

func TestOpen_ViewerOutlivesContext(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	marker := filepath.Join(dir, "opened")
	orig := opener
	opener = func(string) *exec.Cmd {
		return exec.Command("sh", "-c", "sleep 0.3; touch "+marker)
	}
	t.Cleanup(func() { opener = orig })

	report := filepath.Join(dir, "report.html")
	require.NoError(t, os.WriteFile(report, []byte("<html></html>"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, Open(ctx, report))
	cancel()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(marker)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond, "viewer stopped when the context ended")
}
