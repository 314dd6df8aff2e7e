package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/parley-dev/parley/internal/config"
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Manage the suggested-action work queue",
}

var actionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked actions",
	RunE:  runActionsList,
}

var actionsConfirmCmd = &cobra.Command{
	Use:   "confirm <action-id>",
	Short: "Confirm and execute a pending action",
	Args:  cobra.ExactArgs(1),
	RunE:  runActionsConfirm,
}

var actionsRejectCmd = &cobra.Command{
	Use:   "reject <action-id>",
	Short: "Reject a pending action",
	Args:  cobra.ExactArgs(1),
	RunE:  runActionsReject,
}

func init() {
	actionsCmd.AddCommand(actionsListCmd, actionsConfirmCmd, actionsRejectCmd)
	rootCmd.AddCommand(actionsCmd)
}

func runActionsList(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	hub, cleanup, err := buildHub(cfg, localExecutor{})
	if err != nil {
		return err
	}
	defer cleanup()

	all := hub.Actions().All()
	if len(all) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no tracked actions")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tLABEL\tSTATUS\tUPDATED")
	for _, a := range all {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Kind, a.Label, a.Status, a.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runActionsConfirm(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	hub, cleanup, err := buildHub(cfg, localExecutor{})
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := hub.TriggerAction(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "action %s: %s\n", a.ID, a.Status)
	if a.ResultPreview != "" {
		fmt.Fprintln(cmd.OutOrStdout(), a.ResultPreview)
	}
	return nil
}

func runActionsReject(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	hub, cleanup, err := buildHub(cfg, localExecutor{})
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := hub.RejectAction(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "action %s: %s\n", a.ID, a.Status)
	return nil
}
