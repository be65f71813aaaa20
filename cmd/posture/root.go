package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/posture/internal/config"
	"github.com/pankaj-dahiya-devops/posture/internal/providers/aws/common"
	kube "github.com/pankaj-dahiya-devops/posture/internal/providers/kubernetes"
	"github.com/pankaj-dahiya-devops/posture/internal/telemetry"
	"github.com/pankaj-dahiya-devops/posture/internal/version"
)

// Exit codes.
const (
	exitPolicyViolation = 2
	exitUnhealthy       = 3
)

// exitError carries a process exit code through cobra without printing a
// usage message.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return fmt.Sprintf("exit status %d", e.code)
}

// app holds the dependencies shared by every command. Tests swap the
// provider hooks for fakes.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	targets      map[string]targetFunc
	awsProvider  common.AWSClientProvider
	kubeProvider kube.KubeClientProvider
	awsProfiles  func() ([]string, error)
	kubeContexts func() ([]string, string, error)
}

func defaultApp() *app {
	kp := kube.NewDefaultKubeClientProvider()
	return &app{
		logger:       zerolog.Nop(),
		targets:      defaultTargets(),
		awsProvider:  common.NewDefaultAWSClientProvider(),
		kubeProvider: kp,
		awsProfiles:  common.ListProfiles,
		kubeContexts: kp.Contexts,
	}
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(defaultApp())
}

func newRootCmdWith(a *app) *cobra.Command {
	var (
		configPath string
		logLevel   string
		logFormat  string
	)

	root := &cobra.Command{
		Use:           "posture",
		Short:         "Evaluate the security posture of cloud accounts and clusters",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var loader config.Loader
			if configPath != "" {
				loader = config.NewFileLoader(configPath)
			} else {
				l, err := config.NewDefaultLoader()
				if err != nil {
					return err
				}
				loader = l
			}
			cfg, err := loader.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if logFormat != "" {
				cfg.Log.Format = logFormat
			}

			logger, err := telemetry.NewLogger(telemetry.LogConfig{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				Output: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger.With().Str("component", "cli").Logger()
			a.logger.Debug().Str("config", loader.ConfigPath()).Msg("configuration loaded")
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.config/posture/config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console or json")

	root.AddCommand(
		newScanCmd(a),
		newEvaluateCmd(a),
		newRulesCmd(a),
		newHistoryCmd(a),
		newDoctorCmd(a),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info())
		},
	}
}
