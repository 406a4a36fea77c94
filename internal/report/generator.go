package report

import (
	_ "embed"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

//go:embed templates/report.html
var defaultTemplate string

// galleryStep spaces the synthetic screenshot times shown in the gallery.
const galleryStep = 30 * time.Second

// Generator turns the latest summary into an HTML report.
type Generator struct {
	store    *Store
	template string
	outputs  []string
	logger   *zap.Logger
}

// NewGenerator loads templatePath, or uses the built-in template when it
// is empty.
func NewGenerator(store *Store, templatePath string, outputs []string, logger *zap.Logger) (*Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tpl := defaultTemplate
	if templatePath != "" {
		data, err := os.ReadFile(templatePath)
		if err != nil {
			return nil, fmt.Errorf("read report template: %w", err)
		}
		tpl = string(data)
	}
	return &Generator{store: store, template: tpl, outputs: outputs, logger: logger.Named("report")}, nil
}

// Generate renders the latest summary to every output path and returns
// the paths written.
func (g *Generator) Generate() ([]string, RunSummary, error) {
	sum, src, err := g.store.Latest()
	if err != nil {
		return nil, RunSummary{}, err
	}
	g.logger.Info("Found test summary", zap.String("path", src))

	page := g.Render(sum)
	written := make([]string, 0, len(g.outputs))
	for _, out := range g.outputs {
		if dir := filepath.Dir(out); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return written, sum, fmt.Errorf("create report dir: %w", err)
			}
		}
		if err := os.WriteFile(out, []byte(page), 0o644); err != nil {
			return written, sum, fmt.Errorf("write report %s: %w", out, err)
		}
		written = append(written, out)
		g.logger.Info("Report generated", zap.String("path", out))
	}
	return written, sum, nil
}

// Render fills the template from sum. Tokens are replaced literally in one
// pass, so values that happen to contain "{{...}}" stay as they are. The
// result depends only on sum and the template.
func (g *Generator) Render(sum RunSummary) string {
	status := sum.Status.Normalize()
	shots := sum.Artifacts.Screenshots

	successRate := 0
	if status == StatusPassed {
		successRate = 100
	}
	title := sum.TestTitle
	if title == "" {
		title = "Conversation Test"
	}

	values := map[string]string{
		"TEST_TITLE":           esc(title),
		"TEST_STATUS":          strings.ToUpper(string(status)),
		"STATUS_CLASS":         string(status),
		"RUN_ID":               esc(sum.RunID),
		"DURATION":             FormatDuration(sum.DurationMs),
		"AGENT_NAME":           esc(orDefault(sum.AgentName, "Unknown agent")),
		"BROWSER_INFO":         esc(orDefault(sum.TestConfig.Browser, "Unknown browser")),
		"LLM_MODE":             esc(modeLabel(sum)),
		"END_REASON":           esc(orDefault(sum.EndReason, "n/a")),
		"SCREENSHOT_COUNT":     strconv.Itoa(len(shots)),
		"FORMATTED_TIMESTAMP":  formatTime(sum.Timestamp),
		"CONVERSATION_STEPS":   conversationSteps(sum),
		"CONVERSATION_TURNS":   strconv.Itoa(sum.Turns),
		"SUCCESS_RATE":         strconv.Itoa(successRate),
		"AGENT_RESPONSES":      strconv.Itoa(len(sum.Messages)),
		"INITIAL_PROMPT":       esc(orDefault(sum.InitialPrompt, "(no prompt recorded)")),
		"VIDEO_SECTION":        videoSection(sum.Artifacts.Video),
		"EXECUTION_STEPS":      executionSteps(sum.Steps),
		"SCREENSHOT_GALLERY":   Gallery(shots, sum.Started()),
		"TIMELINE_ITEMS":       timeline(sum),
		"EXECUTION_LOGS":       executionLogs(sum),
		"LLM_ANALYSIS_CONTENT": followUps(sum),
	}

	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(g.template)
}

// Gallery renders one entry per screenshot, labeled "Conversation Turn N".
func Gallery(shots []string, start time.Time) string {
	if len(shots) == 0 {
		return "<p>No screenshots captured during this test run.</p>"
	}
	var b strings.Builder
	for i, shot := range shots {
		at := start.Add(time.Duration(i) * galleryStep)
		fmt.Fprintf(&b, `
        <div class="screenshot-item">
          <img src="%s" alt="Screenshot %d">
          <div class="screenshot-info">
            <div class="screenshot-title">Conversation Turn %d</div>
            <div class="screenshot-timestamp">%s</div>
          </div>
        </div>`, esc(imageSrc(shot)), i+1, i+1, at.UTC().Format("15:04:05"))
	}
	return b.String()
}

// FormatDuration prints milliseconds as "Ns" or "Nm Ns"; zero is "N/A".
func FormatDuration(ms int64) string {
	if ms <= 0 {
		return "N/A"
	}
	seconds := (ms + 500) / 1000
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

func conversationSteps(sum RunSummary) string {
	if len(sum.Messages) == 0 && sum.InitialPrompt == "" {
		return "<p>No conversation recorded.</p>"
	}
	var b strings.Builder
	n := 1
	if sum.InitialPrompt != "" {
		writeFlowStep(&b, n, "Prompt", sum.InitialPrompt)
		n++
	}
	for i, msg := range sum.Messages {
		writeFlowStep(&b, n, fmt.Sprintf("Turn %d", i+1), msg)
		n++
	}
	return b.String()
}

func writeFlowStep(b *strings.Builder, n int, label, text string) {
	fmt.Fprintf(b, `
      <div class="flow-step">
        <div class="step-number">%d</div>
        <div><strong>%s:</strong> %s</div>
      </div>`, n, esc(label), esc(text))
}

func executionSteps(steps []string) string {
	if len(steps) == 0 {
		return "<p>No detailed execution steps available.</p>"
	}
	var b strings.Builder
	for i, s := range steps {
		fmt.Fprintf(&b, `
      <div class="step-item">
        <div class="step-title">%s</div>
        <div class="step-details">Execution step %d</div>
      </div>`, esc(s), i+1)
	}
	return b.String()
}

func timeline(sum RunSummary) string {
	shots := sum.Artifacts.Screenshots
	if len(shots) == 0 {
		return `<div class="timeline-item"><div class="timeline-content">No detailed timeline available.</div></div>`
	}
	var b strings.Builder
	for i := range shots {
		label := fmt.Sprintf("Conversation Turn %d captured", i+1)
		if i == len(shots)-1 {
			label = "Final screenshot captured"
		}
		if i < len(sum.Messages) {
			label += ", follow-up sent"
		}
		fmt.Fprintf(&b, `
      <div class="timeline-item">
        <div class="timeline-time">%s</div>
        <div class="timeline-content"><strong>%s</strong></div>
      </div>`, sum.Started().Add(time.Duration(i)*galleryStep).UTC().Format("15:04:05"), esc(label))
	}
	return b.String()
}

func executionLogs(sum RunSummary) string {
	var lines []string
	lines = append(lines, sum.Steps...)
	for i, m := range sum.Messages {
		lines = append(lines, fmt.Sprintf("Turn %d: %s", i+1, m))
	}
	if sum.Error != "" {
		lines = append(lines, "Error: "+sum.Error)
	}
	if len(lines) == 0 {
		return "<div>No detailed execution logs available.</div>"
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString("<div>" + esc(l) + "</div>\n")
	}
	return b.String()
}

func followUps(sum RunSummary) string {
	if len(sum.Messages) == 0 {
		return "<p>No follow-up messages were sent in this run.</p>"
	}
	heading := "Canned follow-up"
	if sum.TestConfig.LLMAnalysis {
		heading = "LLM Follow-up"
	}
	var b strings.Builder
	for i, m := range sum.Messages {
		fmt.Fprintf(&b, `
      <div class="llm-analysis">
        <h4>%s %d</h4>
        <p>%s</p>
      </div>`, heading, i+1, esc(m))
	}
	return b.String()
}

func videoSection(video string) string {
	if video == "" {
		return `<div class="video-placeholder"><p>No video was recorded for this run.</p></div>`
	}
	return fmt.Sprintf(`<video controls preload="metadata"><source src="%s" type="video/webm"></video>`, esc(imageSrc(video)))
}

func modeLabel(sum RunSummary) string {
	mode := orDefault(sum.ConversationMode, "unknown")
	if sum.TestConfig.LLMAnalysis && sum.TestConfig.Model != "" {
		return mode + " (" + sum.TestConfig.Model + ")"
	}
	return mode
}

// imageSrc turns absolute paths into file:// URLs so the report works from
// any directory.
func imageSrc(p string) string {
	if strings.Contains(p, "://") {
		return p
	}
	if filepath.IsAbs(p) {
		slashed := filepath.ToSlash(p)
		if !strings.HasPrefix(slashed, "/") {
			slashed = "/" + slashed
		}
		return "file://" + slashed
	}
	return filepath.ToSlash(p)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func esc(s string) string {
	return html.EscapeString(s)
}
