package strategy

import (
	"fmt"

	"github.com/parley-dev/parley/internal/errors"
)

// SequentialTurn schedules every participant once per turn. Each step's
// instructions carry that agent's role, its own last digest, the shared
// summary, and the most recent conclusions, so every agent answers with the
// same view of where the conversation stands.
type SequentialTurn struct{}

// Name implements Strategy.
func (SequentialTurn) Name() string { return "sequential-turn" }

// recentForSequential is how many conclusions each step is briefed with.
const recentForSequential = 3

// BuildPlan implements Strategy.
func (s SequentialTurn) BuildPlan(in BuildInput) (*Plan, error) {
	if len(in.Participants) == 0 {
		return nil, fmt.Errorf("%w: sequential-turn needs at least one participant", errors.ErrInvalidInput)
	}

	next := in.Snapshot.NextTurn()
	plan := &Plan{NextSnapshot: next}

	for _, participant := range in.Participants {
		var instructions []string
		if participant.Role != "" {
			instructions = append(instructions, fmt.Sprintf("Your role: %s.", participant.Role))
		}
		if participant.Objective != "" {
			instructions = append(instructions, fmt.Sprintf("Your objective: %s.", participant.Objective))
		}
		if digest, ok := in.Snapshot.AgentSummary(participant.ID); ok && digest != "" {
			instructions = append(instructions, fmt.Sprintf("Your previous contribution: %s", digest))
		}
		if in.Snapshot.SharedSummary != "" {
			instructions = append(instructions, fmt.Sprintf("Conversation so far: %s", in.Snapshot.SharedSummary))
		}
		for _, c := range in.Snapshot.RecentConclusions(recentForSequential) {
			instructions = append(instructions, fmt.Sprintf("Recent conclusion (%s): %s", c.Author, c.Content))
		}

		prompt := in.promptFor(participant.ID)
		instructions = append(instructions, fmt.Sprintf("The user asks: %s", prompt))

		plan.Steps = append(plan.Steps, Step{
			Agent:  participant,
			Prompt: prompt,
			Context: Context{
				StrategyID:   s.Name(),
				Snapshot:     in.Snapshot,
				Role:         participant.Role,
				Instructions: instructions,
				UserPrompt:   in.UserPrompt,
				Project:      in.Project,
			},
		})
	}

	plan.BridgeNotices = append(plan.BridgeNotices,
		fmt.Sprintf("turn %d: scheduling %d agents sequentially", next.Turn, len(plan.Steps)))
	return plan, nil
}
