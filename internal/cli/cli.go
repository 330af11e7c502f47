// Package cli defines the speechcraft command tree and maps failures to exit codes.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rbright/speechcraft/internal/version"
)

// ErrReported marks a failure whose details were already written to the user.
var ErrReported = errors.New("command failed")

// UsageError is a malformed invocation: unknown command, bad flag, or bad arguments.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// Globals holds persistent flags shared by every command.
type Globals struct {
	ConfigPath string
}

// PracticeOptions are the practice command flags. Zero values defer to config.
type PracticeOptions struct {
	ScenarioID  string
	MaxDuration time.Duration
}

// Handler executes parsed commands.
type Handler interface {
	Practice(ctx context.Context, g Globals, opts PracticeOptions) error
	Scenarios(ctx context.Context, g Globals) error
	SettingsShow(ctx context.Context, g Globals) error
	SettingsToken(ctx context.Context, g Globals, value string) error
	History(ctx context.Context, g Globals, limit int) error
	Devices(ctx context.Context, g Globals) error
	Doctor(ctx context.Context, g Globals) error
	Status(ctx context.Context, g Globals) error
	Stop(ctx context.Context, g Globals) error
}

// NewRootCommand builds the command tree bound to h.
func NewRootCommand(h Handler) *cobra.Command {
	var globals Globals

	root := &cobra.Command{
		Use:   "speechcraft",
		Short: "Practice speaking scenarios and get AI feedback",
		Long: `SpeechCraft records a spoken answer to a practice scenario, transcribes it,
and scores it for clarity and logic with concrete suggestions.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&globals.ConfigPath, "config", "", "Config file path (default: $XDG_CONFIG_HOME/speechcraft/config.yaml)")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	root.AddCommand(
		newPracticeCommand(h, &globals),
		&cobra.Command{
			Use:   "scenarios",
			Short: "List practice scenarios",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, _ []string) error {
				return h.Scenarios(cmd.Context(), globals)
			},
		},
		newSettingsCommand(h, &globals),
		newHistoryCommand(h, &globals),
		&cobra.Command{
			Use:   "devices",
			Short: "List available input devices",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, _ []string) error {
				return h.Devices(cmd.Context(), globals)
			},
		},
		&cobra.Command{
			Use:   "doctor",
			Short: "Run configuration, credential, and endpoint checks",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, _ []string) error {
				return h.Doctor(cmd.Context(), globals)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the state of the running practice session",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, _ []string) error {
				return h.Status(cmd.Context(), globals)
			},
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Stop recording in the running practice session",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, _ []string) error {
				return h.Stop(cmd.Context(), globals)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  usageArgs(cobra.NoArgs),
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version.String())
			},
		},
	)

	return root
}

func newPracticeCommand(h Handler, globals *Globals) *cobra.Command {
	var opts PracticeOptions
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Record an answer to a scenario and get feedback",
		Long: `Record a spoken answer to a practice scenario.

Press Enter to stop recording. The recording is transcribed and scored, and the
feedback is printed along with the transcript.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.MaxDuration < 0 {
				return &UsageError{Err: errors.New("--max-duration must be >= 0")}
			}
			return h.Practice(cmd.Context(), *globals, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.ScenarioID, "scenario", "s", "", "Scenario id or title (prompts when omitted)")
	cmd.Flags().DurationVar(&opts.MaxDuration, "max-duration", 0, "Stop recording automatically after this long (overrides config)")
	return cmd
}

func newSettingsCommand(h Handler, globals *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change stored settings",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return h.SettingsShow(cmd.Context(), *globals)
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show stored settings with the token masked",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, _ []string) error {
				return h.SettingsShow(cmd.Context(), *globals)
			},
		},
		&cobra.Command{
			Use:   "token [VALUE]",
			Short: "Store the SiliconFlow API token (prompts when VALUE is omitted)",
			Args:  usageArgs(cobra.MaximumNArgs(1)),
			RunE: func(cmd *cobra.Command, args []string) error {
				value := ""
				if len(args) == 1 {
					value = args[0]
				}
				return h.SettingsToken(cmd.Context(), *globals, value)
			},
		},
	)
	return cmd
}

func newHistoryCommand(h Handler, globals *Globals) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent practice attempts",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return &UsageError{Err: errors.New("--limit must be >= 0")}
			}
			return h.History(cmd.Context(), *globals, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum attempts to list (0 lists all)")
	return cmd
}

func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &UsageError{Err: err}
		}
		return nil
	}
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case IsUsage(err):
		return 2
	default:
		return 1
	}
}

// IsUsage reports whether err came from a malformed invocation.
func IsUsage(err error) bool {
	var usage *UsageError
	if errors.As(err, &usage) {
		return true
	}
	// cobra reports unknown subcommands as plain errors.
	return err != nil && strings.HasPrefix(err.Error(), "unknown command")
}
