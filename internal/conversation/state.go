package conversation

import (
	"fmt"
	"strings"
)

// Mode says who writes the follow-up messages.
type Mode string

const (
	ModeLLM      Mode = "llm-powered"
	ModeFallback Mode = "simple-fallback"
)

// EndReason says why the loop stopped.
type EndReason string

const (
	EndLimit        EndReason = "limit"
	EndNatural      EndReason = "ended"
	EndSubmitFailed EndReason = "submit-failed"
	EndCancelled    EndReason = "cancelled"
)

// State is the loop's bookkeeping. Context holds one "Turn N: <message>"
// entry per submitted follow-up; ScreenshotPaths has one entry per
// started turn plus the final capture.
type State struct {
	TurnIndex       int
	MaxTurns        int
	Context         []string
	ScreenshotPaths []string
}

// History joins the context entries the way they are fed to the model.
func (s *State) History() string {
	return strings.Join(s.Context, " ")
}

func (s *State) record(turn int, msg string) {
	s.Context = append(s.Context, fmt.Sprintf("Turn %d: %s", turn, msg))
}

func (s State) clone() State {
	c := s
	c.Context = append([]string(nil), s.Context...)
	c.ScreenshotPaths = append([]string(nil), s.ScreenshotPaths...)
	return c
}

// TurnResult is the decision taken after looking at a turn's screenshot.
type TurnResult struct {
	ShouldContinue bool
	NextMessage    string
}

// Result is what Run hands back.
type Result struct {
	State     State
	Mode      Mode
	EndReason EndReason
	// Messages are the follow-ups actually submitted, in order.
	Messages []string
}
