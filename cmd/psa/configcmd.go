package psa

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/emircanakalin/PSA/internal/config"
	"github.com/emircanakalin/PSA/internal/ignore"
	"github.com/emircanakalin/PSA/internal/rules"
)

func newConfigCmd() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration helpers"}

	var (
		output          string
		force           bool
		threads         int
		maxBytes        int64
		failOnDangerous bool
		noIaC           bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter security-config.yml with the built-in rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}
			fc := config.FileConfig{
				SensitiveDataPatterns: rules.DefaultSensitivePatterns,
				AllowedLicenses:       rules.DefaultAllowedLicenses,
				DangerousFunctions:    rules.DefaultDangerousFunctions,
				MaxBytes:              int64Ptr(maxBytes),
			}
			if threads > 0 {
				fc.Threads = intPtr(threads)
			}
			if failOnDangerous {
				fc.FailOnDangerous = boolPtr(true)
			}
			if noIaC {
				fc.IaC = &config.IaCConfig{Enabled: boolPtr(false)}
			}
			b, err := yaml.Marshal(&fc)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(output, b, 0644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", output)
			return nil
		},
	}
	initCmd.Flags().StringVar(&output, "output", config.DefaultPath, "output file path")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	initCmd.Flags().IntVar(&threads, "threads", 0, "worker threads (0=GOMAXPROCS)")
	initCmd.Flags().Int64Var(&maxBytes, "max-bytes", 10<<20, "skip files larger than this")
	initCmd.Flags().BoolVar(&failOnDangerous, "fail-on-dangerous", false, "fail runs on dangerous-function findings")
	initCmd.Flags().BoolVar(&noIaC, "no-iac", false, "disable the checkov scan")
	cfgCmd.AddCommand(initCmd)
	return cfgCmd
}

func newIgnoreCmd() *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "ignore <pattern>...",
		Short: "Append gitignore-style patterns to " + ignore.FileName,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range args {
				if err := ignore.Append(root, p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %q to %s\n", p, filepath.Join(root, ignore.FileName))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&root, "path", "p", ".", "repository root holding "+ignore.FileName)
	return cmd
}
