package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parley-dev/parley/internal/config"
	"github.com/parley-dev/parley/internal/correction"
)

var (
	correctNotes string
	correctTags  []string
)

var correctCmd = &cobra.Command{
	Use:   "correct <message-id> <corrected-text>",
	Short: "Correct a flagged agent reply and schedule its review",
	Args:  cobra.ExactArgs(2),
	RunE:  runCorrect,
}

func init() {
	correctCmd.Flags().StringVar(&correctNotes, "notes", "", "why the original reply was wrong")
	correctCmd.Flags().StringSliceVar(&correctTags, "tags", nil, "labels for the correction")
	rootCmd.AddCommand(correctCmd)
}

func runCorrect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	hub, cleanup, err := buildHub(cfg, localExecutor{})
	if err != nil {
		return err
	}
	defer cleanup()

	outcome, err := hub.SubmitCorrection(cmd.Context(), correction.Request{
		MessageID:     args[0],
		CorrectedText: args[1],
		Notes:         correctNotes,
		Tags:          correctTags,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "recorded correction %s; %s reviewed it\n",
		outcome.Correction.ID, outcome.Target.ID)
	if msg, ok := hub.Messages().Get(outcome.Pending.ID); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "\n[%s]\n%s\n", msg.AgentID, msg.PlainText())
	}
	return nil
}
