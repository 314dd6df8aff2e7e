package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parley-dev/parley/internal/chat"
	"github.com/parley-dev/parley/internal/config"
	"github.com/parley-dev/parley/internal/conversation"
)

var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Run a conversation turn",
	Long: `Run one orchestration turn with the given prompt, or start an
interactive session when no prompt is given.

Mention an agent at the start of a line to address it directly:

  parley chat "gpt: summarize the thread
  claude: critique the summary"

Without mentions, every active agent answers.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	hub, cleanup, err := buildHub(cfg, localExecutor{})
	if err != nil {
		return err
	}
	defer cleanup()

	if len(args) > 0 {
		return runOneTurn(cmd, hub, strings.Join(args, " "))
	}

	// Interactive sessions pick up roster edits without a restart.
	if watcher, err := watchRoster(cfg, hub); err == nil {
		defer watcher.Close()
	}

	fmt.Fprintln(cmd.OutOrStdout(), "parley interactive session (empty line to quit)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(cmd.OutOrStdout(), "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			return nil
		}
		if err := runOneTurn(cmd, hub, line); err != nil {
			return err
		}
	}
}

func runOneTurn(cmd *cobra.Command, hub *conversation.Hub, input string) error {
	result, err := hub.RunTurn(cmd.Context(), input)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, um := range result.Unmatched {
		fmt.Fprintf(out, "! no active agent answers to %q (candidates: %s)\n",
			um.Alias, strings.Join(um.Candidates, ", "))
	}

	for _, id := range result.ResolvedIDs {
		msg, ok := hub.Messages().Get(id)
		if !ok {
			continue
		}
		fmt.Fprintf(out, "\n[%s]\n%s\n", msg.AgentID, msg.PlainText())
		printSuggestedActions(cmd, hub, msg)
	}
	return nil
}

// watchRoster reloads the agent catalog into the hub whenever the agents file
// changes on disk.
func watchRoster(cfg *config.Config, hub *conversation.Hub) (*config.Watcher, error) {
	return config.NewWatcher(agentsFile(cfg), func(string) error {
		roster, err := loadRoster(cfg)
		if err != nil {
			return err
		}
		hub.UpdateRoster(roster)
		return nil
	})
}

func printSuggestedActions(cmd *cobra.Command, hub *conversation.Hub, msg chat.Message) {
	for _, actionID := range msg.ActionIDs {
		a, ok := hub.Actions().Get(actionID)
		if !ok {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  suggested action %s: %s (confirm with `parley actions confirm %s`)\n",
			a.ID, a.Label, a.ID)
	}
}
