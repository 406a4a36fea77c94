package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ClassifyContinuation asks the model whether the chat in the screenshot
// should go on. Turns at or past the cap end without a request; transport
// and empty-response failures fall back to turnIndex < fallbackTurnCap.
func (c *OpenAIClient) ClassifyContinuation(ctx context.Context, image []byte, turnIndex int) bool {
	if turnIndex >= c.maxTurns {
		c.logger.Info("Maximum conversation turns reached", zap.Int("turn", turnIndex))
		return false
	}

	answer, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    visionMessages(classifySystemPrompt, classifyUserPrompt, image),
		MaxTokens:   c.classifyMaxTokens,
		Temperature: c.classifyTemperature,
	})
	if err != nil {
		fallback := turnIndex < c.fallbackTurnCap
		c.logger.Warn("Continuation analysis failed, using turn heuristic",
			zap.Int("turn", turnIndex),
			zap.Bool("continue", fallback),
			zap.Error(err))
		c.fellBack("classify")
		return fallback
	}

	return strings.EqualFold(answer, verdictContinue)
}

// GenerateNextMessage asks the model for the user's next reply to the
// latest agent turn visible in the screenshot. Any failure yields the
// canned fallback for this turn.
func (c *OpenAIClient) GenerateNextMessage(ctx context.Context, image []byte, history string, turnIndex int) string {
	reply, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    visionMessages(messageSystemPrompt(turnIndex, history), messageUserPrompt, image),
		MaxTokens:   c.messageMaxTokens,
		Temperature: c.messageTemperature,
	})
	if err != nil {
		fallback := ResponseAt(c.fallbackResponses, turnIndex)
		c.logger.Warn("Message generation failed, using fallback response",
			zap.Int("turn", turnIndex),
			zap.String("fallback", fallback),
			zap.Error(err))
		c.fellBack("message")
		return fallback
	}

	c.logger.Debug("Generated follow-up", zap.Int("turn", turnIndex), zap.String("message", reply))
	return reply
}

// ResponseAt picks entry min(turnIndex-1, len-1) of a canned table, clamped
// at 0. An empty table yields "".
func ResponseAt(table []string, turnIndex int) string {
	if len(table) == 0 {
		return ""
	}
	i := min(turnIndex-1, len(table)-1)
	if i < 0 {
		i = 0
	}
	return table[i]
}

func messageSystemPrompt(turnIndex int, history string) string {
	if history == "" {
		history = "(none)"
	}
	return fmt.Sprintf(messageSystemTemplate, turnIndex, history)
}
