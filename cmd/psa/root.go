package psa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/emircanakalin/PSA/internal/logging"
)

var version = "0.1.0"

// ExitError carries a process exit status out of a command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

type rootOptions struct {
	logLevel      string
	logJSON       bool
	noColor       bool
	noUpdateCheck bool

	env *viper.Viper
}

// newEnv binds the GitHub Action inputs and PSA_* overrides.
func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("PSA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("repo_path", "INPUT_REPO_PATH", "PSA_REPO_PATH")
	_ = v.BindEnv("config_path", "INPUT_CONFIG_PATH", "PSA_CONFIG_PATH")
	_ = v.BindEnv("fail_on_dangerous", "INPUT_FAIL_ON_DANGEROUS", "PSA_FAIL_ON_DANGEROUS")
	v.SetDefault("repo_path", ".")
	v.SetDefault("log_level", "info")
	return v
}

func (o *rootOptions) logger(w io.Writer) zerolog.Logger {
	return logging.New(logging.Options{
		Level:   o.env.GetString("log_level"),
		NoColor: o.env.GetBool("no_color"),
		JSON:    o.logJSON,
		Out:     w,
	})
}

// NewRootCmd builds the psa command tree.
func NewRootCmd() *cobra.Command {
	o := &rootOptions{env: newEnv()}
	root := &cobra.Command{
		Use:   "psa",
		Short: "Proactive security and compliance checks for a repository",
		Long: "psa scans a repository for hard-coded secrets, non-allowlisted dependency licenses, " +
			"IaC misconfigurations and dangerous function calls, and fails CI when it finds issues.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "info", "log level: debug|info|warn|error|quiet")
	root.PersistentFlags().BoolVar(&o.logJSON, "log-json", false, "emit logs as JSON lines")
	root.PersistentFlags().BoolVar(&o.noColor, "no-color", false, "disable colorized output")
	root.PersistentFlags().BoolVar(&o.noUpdateCheck, "no-update-check", false, "disable update check")
	_ = o.env.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))
	_ = o.env.BindPFlag("no_color", root.PersistentFlags().Lookup("no-color"))

	root.AddCommand(
		newScanCmd(o),
		newBaselineCmd(o),
		newHistoryCmd(),
		newRulesCmd(o),
		newConfigCmd(),
		newIgnoreCmd(),
		newCICmd(),
		newCompletionCmd(root),
		newVersionCmd(),
		newUpdateCmd(),
	)
	return root
}

// Execute runs the psa CLI. It should be called by the main package.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, NewRootCmd(), os.Args[1:]))
}

// run executes root with args and returns the process exit status: 0 clean,
// 1 issues found, 2 usage or configuration errors.
func run(ctx context.Context, root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	fmt.Fprintln(root.ErrOrStderr(), "error:", err)
	return 2
}
