package agent

import (
	"strings"

	"github.com/nbenliogludev/go-chat-agent-tester/internal/conversation"
)

// EndNoChatInput ends a run that never found a chat input to talk to.
const EndNoChatInput conversation.EndReason = "no-chat-input"

func humanizeReason(reason conversation.EndReason) string {
	switch reason {
	case conversation.EndLimit:
		return "turn limit reached"
	case conversation.EndNatural:
		return "conversation reached a natural end"
	case conversation.EndSubmitFailed:
		return "a follow-up could not be sent"
	case conversation.EndCancelled:
		return "run was interrupted"
	case EndNoChatInput:
		return "chat input was not found"
	default:
		return string(reason)
	}
}

func shortID(runID string) string {
	id := strings.ReplaceAll(runID, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
