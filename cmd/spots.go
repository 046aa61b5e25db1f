package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/michojekunle/amala-atlas/internal/model"
	"github.com/michojekunle/amala-atlas/internal/places"
)

var spotsCmd = &cobra.Command{
	Use:   "spots",
	Short: "Inspect and load published spots",
}

// -- spots list --

var spotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List published spots",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		ctx := cmd.Context()

		// Flags share the HTTP query parser so both surfaces filter alike.
		v := url.Values{}
		for _, name := range []string{"bbox", "city", "price_band", "tags", "query"} {
			if val, _ := cmd.Flags().GetString(strings.ReplaceAll(name, "_", "-")); val != "" {
				v.Set(name, val)
			}
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		dir := newDirectory(st)
		q, err := dir.ParseQuery(v)
		if err != nil {
			return err
		}
		spots, err := dir.List(ctx, q.Filter)
		if err != nil {
			return err
		}

		if len(spots) == 0 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No spots found.")
			return nil
		}
		formatSpots(cmd.OutOrStdout(), spots)
		return nil
	},
}

// -- spots show --

var spotsShowCmd = &cobra.Command{
	Use:   "show <spot-id>",
	Short: "Show full details of a spot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return eris.Errorf("invalid spot id %q", args[0])
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		spot, err := newDirectory(st).Get(ctx, id)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(spot)
	},
}

// -- spots import --

var spotsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Bulk-load spots from a YAML seed file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		ctx := cmd.Context()

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "spots import: open file")
		}
		defer f.Close() //nolint:errcheck

		spots, err := places.ParseSpotSeed(f, cfg.Places.DefaultCountry)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := newDirectory(st).Import(ctx, spots)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d spots\n", n)
		return nil
	},
}

func init() {
	spotsListCmd.Flags().String("bbox", "", "bounding box minLng,minLat,maxLng,maxLat")
	spotsListCmd.Flags().String("city", "", "filter by city (case-insensitive)")
	spotsListCmd.Flags().String("price-band", "", "filter by price band")
	spotsListCmd.Flags().String("tags", "", "comma-separated tags; all must match")
	spotsListCmd.Flags().String("query", "", "substring match on name, city and address")

	spotsCmd.AddCommand(spotsListCmd)
	spotsCmd.AddCommand(spotsShowCmd)
	spotsCmd.AddCommand(spotsImportCmd)
	rootCmd.AddCommand(spotsCmd)
}

// formatSpots writes a tabular list of spots to out.
func formatSpots(out io.Writer, spots []model.Spot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCITY\tPRICE\tTAGS\tCOORDS")
	for _, s := range spots {
		tags := "-"
		if len(s.Tags) > 0 {
			tags = strings.Join(s.Tags, ",")
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%.5f,%.5f\n",
			s.ID,
			truncate(s.Name, 40),
			s.City,
			s.PriceBand,
			tags,
			s.Lat, s.Lng,
		)
	}
	_ = w.Flush()
}
