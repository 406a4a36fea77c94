package selector

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nbenliogludev/go-chat-agent-tester/internal/config"
	"go.uber.org/zap"
)

// AgentSelector walks the assistant UI: agent store, search, agent card,
// chat input.
type AgentSelector struct {
	loc    Locator
	cfg    config.SelectorsConfig
	logger *zap.Logger

	// pause is swapped out in tests.
	pause func(ctx context.Context, d time.Duration) error
}

func NewAgentSelector(loc Locator, cfg config.SelectorsConfig, logger *zap.Logger) *AgentSelector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentSelector{
		loc:    loc,
		cfg:    cfg,
		logger: logger.Named("selector"),
		pause:  wait,
	}
}

// OpenAgentStore clicks the "All agents" entry. false means it was not
// found, which usually means the store is already open.
func (s *AgentSelector) OpenAgentStore(ctx context.Context) (bool, error) {
	ok, err := s.act(ctx, "all agents", s.cfg.AllAgents, s.cfg.ProbeTimeout, func(el Element) error {
		return el.Click(ctx)
	})
	if err != nil || !ok {
		return ok, err
	}
	return true, s.pause(ctx, s.cfg.StepPause)
}

// SearchAgent types name into the agent search box and submits it.
func (s *AgentSelector) SearchAgent(ctx context.Context, name string) (bool, error) {
	ok, err := s.act(ctx, "agent search", s.cfg.Search, s.cfg.ProbeTimeout, func(el Element) error {
		if err := el.Fill(ctx, name); err != nil {
			return fmt.Errorf("fill search: %w", err)
		}
		if err := s.pause(ctx, s.cfg.StepPause/2); err != nil {
			return err
		}
		return el.Press(ctx, "Enter")
	})
	if err != nil || !ok {
		return ok, err
	}
	return true, s.pause(ctx, s.cfg.ResultsWait)
}

// SelectAgent clicks the first visible element naming the agent.
func (s *AgentSelector) SelectAgent(ctx context.Context, name string) (bool, error) {
	candidates := ExpandAgent(s.cfg.Agent, name)
	ok, err := s.act(ctx, "agent "+name, candidates, s.cfg.ProbeTimeout, func(el Element) error {
		return el.Click(ctx)
	})
	if err != nil || !ok {
		return ok, err
	}
	return true, s.pause(ctx, s.cfg.StepPause)
}

// FindChatInput returns the message box of the selected agent.
func (s *AgentSelector) FindChatInput(ctx context.Context) (Element, bool, error) {
	m, ok, err := Resolve(ctx, s.loc, s.cfg.ChatInput, s.cfg.InputTimeout, s.logger)
	if err != nil || !ok {
		if err == nil {
			s.logger.Warn("Chat input not found", zap.Int("candidates", len(s.cfg.ChatInput)))
		}
		return nil, false, err
	}
	s.logger.Info("Found chat input",
		zap.String("query", m.Query),
		zap.Bool("contenteditable", m.Element.Editable(ctx)))
	return m.Element, true, nil
}

// act resolves candidates and runs fn on the match. If fn fails the search
// resumes after the failed candidate.
func (s *AgentSelector) act(ctx context.Context, what string, candidates []string, timeout time.Duration, fn func(Element) error) (bool, error) {
	rest := candidates
	offset := 0
	for len(rest) > 0 {
		m, ok, err := Resolve(ctx, s.loc, rest, timeout, s.logger)
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}
		idx := offset + m.Index
		if err := fn(m.Element); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			s.logger.Debug("Matched element rejected the action",
				zap.String("target", what), zap.String("query", m.Query), zap.Error(err))
			offset = idx + 1
			rest = candidates[offset:]
			continue
		}
		s.logger.Info("Step done", zap.String("target", what), zap.String("query", m.Query), zap.Int("candidate", idx+1))
		return true, nil
	}
	s.logger.Warn("No candidate matched", zap.String("target", what), zap.Int("candidates", len(candidates)))
	return false, nil
}

var whitespace = regexp.MustCompile(`\s+`)

// Slug lowercases name and joins its words with dashes.
func Slug(name string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// ExpandAgent fills the {{AGENT}} and {{AGENT_SLUG}} placeholders of each
// template. Double quotes in the name are escaped for use inside quoted
// selector text.
func ExpandAgent(templates []string, name string) []string {
	quoted := strings.ReplaceAll(name, `"`, `\"`)
	r := strings.NewReplacer("{{AGENT}}", quoted, "{{AGENT_SLUG}}", Slug(name))
	out := make([]string, len(templates))
	for i, t := range templates {
		out[i] = r.Replace(t)
	}
	return out
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
