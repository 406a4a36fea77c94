package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/nbenliogludev/go-chat-agent-tester/internal/browser"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/config"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/llm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const preflightTimeout = 15 * time.Second

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the browser endpoint and the OpenAI key before a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			var errs []error

			if a.cfg.Browser.Mode == config.BrowserModeCDP {
				rep, err := browser.Preflight(ctx, a.cfg.Browser.CDPURL, preflightTimeout)
				if err != nil {
					fmt.Fprintf(out, "Browser: unreachable at %s\n", a.cfg.Browser.CDPURL)
					fmt.Fprintln(out, "  start it with --remote-debugging-port=9222")
					errs = append(errs, err)
				} else {
					fmt.Fprintf(out, "Browser: %s\n  user agent: %s\n", rep.Endpoint, rep.UserAgent)
					for _, p := range rep.Pages {
						fmt.Fprintf(out, "  tab: %s (%s)\n", p.Title, p.URL)
					}
				}
			} else {
				fmt.Fprintln(out, "Browser: launch mode, nothing to check")
			}

			client := llm.NewOpenAIClient(a.cfg.LLM, a.cfg.Conversation, a.logger)
			if !client.HasCredential() {
				a.logger.Warn("OPENAI_API_KEY not set, LLM check skipped")
				fmt.Fprintln(out, "OpenAI: no key, conversations will use canned follow-ups")
			} else {
				fmt.Fprintf(out, "OpenAI: key %s, model %s\n", client.MaskedKey(), client.Model())
				reply, err := client.Ping(ctx)
				if err != nil {
					fmt.Fprintln(out, "  connection failed")
					errs = append(errs, err)
				} else {
					a.logger.Info("OpenAI ping", zap.String("reply", reply))
					fmt.Fprintf(out, "  response: %q\n", reply)
				}
			}
			return errors.Join(errs...)
		},
	}
}
