package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"budgetform/internal/cli"
	"budgetform/internal/core"
	"budgetform/internal/storage"
)

func newPendingCmd() *cobra.Command {
	var limit, maxAttempts int
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List summary rows not yet synced to the spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			if maxAttempts <= 0 {
				maxAttempts = cfg.SyncMaxAttempts
			}
			repo, err := cli.InitSQLite(cliLogger(), cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			ctx := cmd.Context()
			counts, err := repo.CountByStatus(ctx)
			if err != nil {
				return err
			}
			rows, err := repo.PendingRows(ctx, limit, maxAttempts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pending=%d synced=%d error=%d\n",
				counts[storage.StatusPending], counts[storage.StatusSynced], counts[storage.StatusError])
			if len(rows) == 0 {
				fmt.Fprintln(out, "Nothing to sync.")
				return nil
			}
			fmt.Fprint(out, renderTable("Pending rows", pendingHeader(), pendingRows(rows)))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows to list")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "Skip rows retried this many times (default: SYNC_MAX_ATTEMPTS)")
	return cmd
}

func pendingHeader() []string {
	return append([]string{"id", "created", "status", "attempts"}, core.ExportHeader...)
}

func pendingRows(rows []storage.StoredRow) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells := []string{
			strconv.FormatInt(r.ID, 10),
			r.CreatedAt.Local().Format(time.DateTime),
			string(r.Status),
			strconv.FormatInt(r.Attempts, 10),
		}
		for _, v := range r.Row {
			cells = append(cells, strconv.FormatFloat(v, 'f', 2, 64))
		}
		out = append(out, cells)
	}
	return out
}
