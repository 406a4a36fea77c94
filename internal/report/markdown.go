package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Markdown is a short plain-text digest of a run, used by the CLI after a
// run or when printing the latest report.
func Markdown(sum RunSummary) string {
	var b strings.Builder
	title := orDefault(sum.TestTitle, "Conversation Test")
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "**Status:** %s  \n", strings.ToUpper(string(sum.Status.Normalize())))
	fmt.Fprintf(&b, "**Agent:** %s  \n", orDefault(sum.AgentName, "Unknown agent"))
	fmt.Fprintf(&b, "**Mode:** %s  \n", modeLabel(sum))
	fmt.Fprintf(&b, "**Duration:** %s  \n", FormatDuration(sum.DurationMs))
	fmt.Fprintf(&b, "**Turns:** %d  \n", sum.Turns)
	if sum.EndReason != "" {
		fmt.Fprintf(&b, "**End reason:** %s  \n", sum.EndReason)
	}
	if sum.Error != "" {
		fmt.Fprintf(&b, "**Error:** %s  \n", sum.Error)
	}

	if sum.InitialPrompt != "" {
		b.WriteString("\n## Prompt\n\n> " + strings.ReplaceAll(sum.InitialPrompt, "\n", "\n> ") + "\n")
	}
	if len(sum.Messages) > 0 {
		b.WriteString("\n## Follow-ups\n\n")
		for i, m := range sum.Messages {
			fmt.Fprintf(&b, "%d. %s\n", i+1, m)
		}
	}
	fmt.Fprintf(&b, "\n## Artifacts\n\n- Screenshots: %d\n", len(sum.Artifacts.Screenshots))
	if sum.Artifacts.Video != "" {
		fmt.Fprintf(&b, "- Video: `%s`\n", sum.Artifacts.Video)
	}
	return b.String()
}

// RenderTerminal styles md for the terminal. On renderer failure the raw
// markdown comes back with the error.
func RenderTerminal(md string) (string, error) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return md, err
	}
	out, err := r.Render(md)
	if err != nil {
		return md, err
	}
	return out, nil
}
