// Package cli holds the agent-cli commands.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/nbenliogludev/go-chat-agent-tester/internal/config"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/observability"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app is the state shared by all commands once PersistentPreRunE ran.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "agent-cli",
		Short:         "Drive conversations with hosted chat agents and report on them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")

	root.AddCommand(
		newRunCmd(a),
		newReportCmd(a),
		newOpenCmd(a),
		newCheckCmd(a),
	)
	return root
}

// Execute runs the CLI with args from the process.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
	}
	return err
}

// load reads config.yaml (if any) and the environment, then starts the
// logger.
func (a *app) load() error {
	v := viper.New()
	config.SetDefaults(v)
	config.BindEnv(v)

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	observability.InitializeLogger(cfg.Logger)
	a.logger = observability.GetLogger()
	if used := v.ConfigFileUsed(); used != "" {
		a.logger.Debug("Loaded config", zap.String("path", used))
	}
	return nil
}
