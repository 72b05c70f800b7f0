package psa

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/emircanakalin/PSA/internal/audit"
)

func newHistoryCmd() *cobra.Command {
	var (
		root   string
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show scans recorded with --audit-log, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := audit.NewAuditLog(root).LoadHistory()
			if err != nil {
				return err
			}
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			if len(records) == 0 {
				fmt.Fprintln(w, "No scans recorded.")
				return nil
			}
			table := tablewriter.NewWriter(w)
			table.Header("When", "Result", "Findings", "New", "Baselined", "Files", "Duration")
			for _, r := range records {
				result := "PASS"
				if r.Failed {
					result = "FAIL"
				}
				if err := table.Append([]string{
					r.Timestamp.Local().Format("2006-01-02 15:04:05"),
					result,
					strconv.Itoa(r.TotalFindings),
					strconv.Itoa(r.NewFindings),
					strconv.Itoa(r.BaselinedCount),
					strconv.Itoa(r.FilesScanned),
					r.Duration,
				}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
	cmd.Flags().StringVarP(&root, "path", "p", ".", "repository whose history is shown")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show at most this many scans (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit records as JSON")
	return cmd
}
