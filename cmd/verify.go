package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/michojekunle/amala-atlas/internal/model"
	"github.com/michojekunle/amala-atlas/internal/verification"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <candidate-id> <action>",
	Short: "Cast a verification vote (approve, reject, merge, edit)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return eris.Errorf("invalid candidate id %q", args[0])
		}

		user, _ := cmd.Flags().GetInt64("user")
		notes, _ := cmd.Flags().GetString("notes")
		mergeInto, _ := cmd.Flags().GetInt64("merge-into")

		req := verification.VoteRequest{
			CandidateID: id,
			Action:      model.Action(strings.ToLower(args[1])),
			Notes:       notes,
		}
		if user > 0 {
			req.Voter.UserID = &user
		}
		if mergeInto > 0 {
			req.MergeIntoSpotID = &mergeInto
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := newEngine(st).CastVote(ctx, req)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "%s: status=%s approvals=%d rejections=%d\n",
			res.Message(), res.Status, res.Approvals, res.Rejections)
		if res.SpotCreated() {
			_, _ = fmt.Fprintf(out, "spot %d published\n", *res.SpotID)
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().Int64("user", 0, "reviewer user id (anonymous when 0)")
	verifyCmd.Flags().String("notes", "", "free-text reviewer notes")
	verifyCmd.Flags().Int64("merge-into", 0, "target spot id for merge votes")
	rootCmd.AddCommand(verifyCmd)
}
