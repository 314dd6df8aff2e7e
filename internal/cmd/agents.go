package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/parley-dev/parley/internal/config"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List configured agents",
	RunE:  runAgents,
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}

func runAgents(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	roster, err := loadRoster(cfg)
	if err != nil {
		return err
	}
	if roster.Len() == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no agents configured; add them to %s\n", agentsFile(cfg))
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tPROVIDER/CHANNEL\tROLE\tACTIVE\tALIASES")
	for _, a := range roster.All() {
		endpoint := a.Provider
		if endpoint == "" {
			endpoint = a.Channel
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%s\n",
			a.ID, a.Kind, endpoint, a.Role, a.Active, strings.Join(a.Aliases, ","))
	}
	return w.Flush()
}
