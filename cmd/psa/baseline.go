package psa

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/emircanakalin/PSA/internal/pipeline"
	"github.com/emircanakalin/PSA/internal/report"
)

func newBaselineCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage baselines",
	}

	var output string
	update := &cobra.Command{
		Use:   "update",
		Short: "Accept every current finding into the baseline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := ro.logger(cmd.ErrOrStderr())
			root, cfgPath, fc, err := loadSettings(ro, &log)
			if err != nil {
				return err
			}
			rep, err := pipeline.Run(cmd.Context(), pipeline.Options{
				Root:          root,
				ConfigPath:    cfgPath,
				Config:        fc,
				UseIgnoreFile: true,
				Logger:        &log,
			})
			if err != nil {
				return err
			}
			path := output
			if path == "" {
				path = filepath.Join(root, report.DefaultBaselineFile)
			}
			if err := report.SaveBaseline(path, rep); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Baseline updated: %d findings in %s\n", rep.Total(), path)
			return nil
		},
	}
	update.Flags().StringVarP(&output, "output", "o", "", "baseline file (default <path>/"+report.DefaultBaselineFile+")")
	update.Flags().StringP("path", "p", ".", "repository to scan (env INPUT_REPO_PATH)")
	update.Flags().String("config", "", "configuration file (env INPUT_CONFIG_PATH)")
	update.PreRun = func(cmd *cobra.Command, _ []string) { bindRepoFlags(ro, cmd) }
	cmd.AddCommand(update)
	return cmd
}
