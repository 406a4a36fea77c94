package report

import "time"

// Status of a finished run.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusUnknown Status = "unknown"
)

// Normalize maps anything that is not passed or failed to unknown.
func (s Status) Normalize() Status {
	switch s {
	case StatusPassed, StatusFailed:
		return s
	default:
		return StatusUnknown
	}
}

// RunSummary is the record of one conversation run. It is written once at
// the end of a run and never changed afterwards.
type RunSummary struct {
	RunID            string     `json:"runId"`
	TestTitle        string     `json:"testTitle"`
	TestName         string     `json:"testName"`
	AgentName        string     `json:"agentName"`
	InitialPrompt    string     `json:"initialPrompt"`
	Timestamp        time.Time  `json:"timestamp"`
	DurationMs       int64      `json:"duration"`
	Status           Status     `json:"status"`
	ConversationMode string     `json:"conversationMode"`
	EndReason        string     `json:"endReason,omitempty"`
	Error            string     `json:"error,omitempty"`
	Turns            int        `json:"turns"`
	Messages         []string   `json:"messages"`
	Steps            []string   `json:"steps,omitempty"`
	Artifacts        Artifacts  `json:"artifacts"`
	TestConfig       TestConfig `json:"testConfig"`
}

// Artifacts are the files a run produced. Paths are stored relative to the
// summary directory and resolved back when loaded.
type Artifacts struct {
	Video            string   `json:"video,omitempty"`
	Screenshots      []string `json:"screenshots"`
	ScreenshotsCount int      `json:"screenshotsCount"`
}

type TestConfig struct {
	Browser              string `json:"browser"`
	LLMAnalysis          bool   `json:"llmAnalysis"`
	MaxConversationTurns int    `json:"maxConversationTurns"`
	Model                string `json:"model,omitempty"`
}

// Duration returns DurationMs as a time.Duration.
func (s RunSummary) Duration() time.Duration {
	return time.Duration(s.DurationMs) * time.Millisecond
}

// Started is the run start, derived from the write timestamp.
func (s RunSummary) Started() time.Time {
	return s.Timestamp.Add(-s.Duration())
}
