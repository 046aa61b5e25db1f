package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/michojekunle/amala-atlas/internal/model"
	"github.com/michojekunle/amala-atlas/internal/places"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a place from a JSON file",
	Long:  "Reads a submission JSON document (same shape as POST /submit-candidate) and creates a candidate. Use --file - to read stdin.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		ctx := cmd.Context()

		file, _ := cmd.Flags().GetString("file")
		kind, _ := cmd.Flags().GetString("kind")

		sub, err := readSubmission(cmd.InOrStdin(), file)
		if err != nil {
			return err
		}
		if sub.Kind == "" {
			sub.Kind = model.SubmissionKind(kind)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		factory, err := places.NewFactoryFromConfig(st, cfg)
		if err != nil {
			return err
		}
		cand, err := factory.Submit(ctx, sub)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "candidate %d (%s) %s score=%.2f\n",
			cand.ID, cand.PublicID, cand.Status, cand.Score)
		return nil
	},
}

func init() {
	submitCmd.Flags().String("file", "", "path to submission JSON (- for stdin)")
	submitCmd.Flags().String("kind", string(model.SubmissionKindAgentic), "submission kind when the document omits one (manual, agentic)")
	_ = submitCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(submitCmd)
}

func readSubmission(stdin io.Reader, path string) (*model.Submission, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "submit: open file")
		}
		defer f.Close() //nolint:errcheck
		r = f
	}

	var sub model.Submission
	if err := json.NewDecoder(r).Decode(&sub); err != nil {
		return nil, eris.Wrap(err, "submit: decode submission")
	}
	// Server-assigned fields are never taken from the document.
	sub.ID = 0
	sub.PublicID = ""
	sub.SubmittedBy = nil
	return &sub, nil
}
