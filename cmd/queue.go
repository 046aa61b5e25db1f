package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/michojekunle/amala-atlas/internal/model"
	"github.com/michojekunle/amala-atlas/internal/store"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List candidates awaiting verification",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		city, _ := cmd.Flags().GetString("city")
		sourceKind, _ := cmd.Flags().GetString("source-kind")
		limit, _ := cmd.Flags().GetInt("limit")

		cands, err := newEngine(st).Queue(ctx, store.QueueFilter{
			City:       city,
			SourceKind: sourceKind,
			Limit:      limit,
		})
		if err != nil {
			return err
		}

		if len(cands) == 0 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No pending candidates.")
			return nil
		}
		formatQueue(cmd.OutOrStdout(), cands)
		return nil
	},
}

func init() {
	queueCmd.Flags().String("city", "", "filter by city (case-insensitive)")
	queueCmd.Flags().String("source-kind", "", "filter by source kind (user, agent, blog, directory, social)")
	queueCmd.Flags().Int("limit", 50, "max number of candidates to display")
	rootCmd.AddCommand(queueCmd)
}

// formatQueue writes a tabular list of candidates to out.
func formatQueue(out io.Writer, cands []model.Candidate) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCITY\tSOURCE\tSCORE\tCOORDS\tCREATED")
	for _, c := range cands {
		coords := "-"
		if c.Lat != nil && c.Lng != nil {
			coords = strconv.FormatFloat(*c.Lat, 'f', 5, 64) + "," + strconv.FormatFloat(*c.Lng, 'f', 5, 64)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
			c.ID,
			truncate(c.Name, 40),
			c.City,
			c.SourceKind,
			c.Score,
			coords,
			c.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
