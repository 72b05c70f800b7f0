package psa

import (
	"fmt"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/emircanakalin/PSA/internal/rules"
)

func newRulesCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the configured patterns, dangerous functions and language mapping",
		Args:  cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, _ []string) {
			bindRepoFlags(ro, cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := ro.logger(cmd.ErrOrStderr())
			_, cfgPath, fc, err := loadSettings(ro, &log)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Configuration: %s\n\n", cfgPath)

			table := tablewriter.NewWriter(w)
			table.Header("Kind", "Language", "Rule", "Status")
			add := func(kind, lang, rule, status string) error {
				return table.Append([]string{kind, lang, rule, status})
			}

			_, badPatterns := rules.CompilePatterns(fc.SensitiveDataPatterns)
			invalid := map[string]string{}
			for _, b := range badPatterns {
				invalid[b.Pattern] = b.Err.Error()
			}
			for _, p := range fc.SensitiveDataPatterns {
				if err := add("pattern", "*", p, status(invalid, p)); err != nil {
					return err
				}
			}

			langs := make([]string, 0, len(fc.DangerousFunctions))
			for l := range fc.DangerousFunctions {
				langs = append(langs, l)
			}
			sort.Strings(langs)
			for _, l := range langs {
				for _, name := range fc.DangerousFunctions[l] {
					st := "ok"
					if _, err := rules.CompileFunction(rules.Language(l), name); err != nil {
						st = "invalid: " + err.Error()
					}
					if err := add("function", l, name, st); err != nil {
						return err
					}
				}
			}
			if err := table.Render(); err != nil {
				return err
			}

			fmt.Fprintln(w)
			lm := rules.DefaultLanguageMap().With(fc.Languages)
			seen := map[rules.Language]bool{}
			var all []rules.Language
			for _, l := range lm {
				if !seen[l] {
					seen[l] = true
					all = append(all, l)
				}
			}
			sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
			for _, l := range all {
				n := len(fc.DangerousFunctions[string(l)])
				fmt.Fprintf(w, "%-12s %-28s %d function(s)\n", l, strings.Join(lm.Extensions(l), " "), n)
			}
			return nil
		},
	}
	cmd.Flags().StringP("path", "p", ".", "repository whose configuration is listed")
	cmd.Flags().String("config", "", "configuration file")
	return cmd
}

func status(invalid map[string]string, pattern string) string {
	if msg, ok := invalid[pattern]; ok {
		return "invalid: " + msg
	}
	return "ok"
}
