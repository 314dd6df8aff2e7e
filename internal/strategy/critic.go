package strategy

import (
	"fmt"
	"strings"

	"github.com/parley-dev/parley/internal/agent"
	"github.com/parley-dev/parley/internal/errors"
)

// CriticReviewer splits participants into producers and reviewers by role
// name. Producers propose; reviewers validate the latest conclusion. With two
// or more participants neither partition is left empty.
type CriticReviewer struct{}

// Name implements Strategy.
func (CriticReviewer) Name() string { return "critic-reviewer" }

// isReviewerRole applies the role-name heuristic.
func isReviewerRole(role string) bool {
	lower := strings.ToLower(role)
	return strings.Contains(lower, "critic") || strings.Contains(lower, "reviewer")
}

// BuildPlan implements Strategy.
func (s CriticReviewer) BuildPlan(in BuildInput) (*Plan, error) {
	if len(in.Participants) == 0 {
		return nil, fmt.Errorf("%w: critic-reviewer needs at least one participant", errors.ErrInvalidInput)
	}

	var producers, reviewers []agent.Definition
	for _, p := range in.Participants {
		if isReviewerRole(p.Role) {
			reviewers = append(reviewers, p)
		} else {
			producers = append(producers, p)
		}
	}

	// With two or more participants neither partition may stay empty: move
	// the last member of the larger partition across.
	if len(in.Participants) >= 2 {
		if len(reviewers) == 0 && len(producers) > 1 {
			last := len(producers) - 1
			reviewers = append(reviewers, producers[last])
			producers = producers[:last]
		} else if len(producers) == 0 && len(reviewers) > 1 {
			last := len(reviewers) - 1
			producers = append(producers, reviewers[last])
			reviewers = reviewers[:last]
		}
	}

	next := in.Snapshot.NextTurn()
	plan := &Plan{NextSnapshot: next}

	for _, producer := range producers {
		prompt := in.promptFor(producer.ID)
		instructions := []string{
			"Propose a solution to the user's request.",
			fmt.Sprintf("The user asks: %s", prompt),
		}
		plan.Steps = append(plan.Steps, Step{
			Agent:  producer,
			Prompt: prompt,
			Context: Context{
				StrategyID:   s.Name(),
				Snapshot:     in.Snapshot,
				Role:         producer.Role,
				Instructions: instructions,
				UserPrompt:   in.UserPrompt,
				Project:      in.Project,
			},
		})
	}

	for _, reviewer := range reviewers {
		prompt := in.promptFor(reviewer.ID)
		instructions := []string{
			"Validate or improve the most recent conclusion.",
		}
		if latest, ok := in.Snapshot.LatestConclusion(); ok {
			instructions = append(instructions,
				fmt.Sprintf("Most recent conclusion (%s): %s", latest.Author, latest.Content))
		} else {
			instructions = append(instructions, "No conclusion has been reached yet; review the proposals as they arrive.")
		}
		instructions = append(instructions, fmt.Sprintf("The user asks: %s", prompt))
		plan.Steps = append(plan.Steps, Step{
			Agent:  reviewer,
			Prompt: prompt,
			Context: Context{
				StrategyID:   s.Name(),
				Snapshot:     in.Snapshot,
				Role:         reviewer.Role,
				Instructions: instructions,
				UserPrompt:   in.UserPrompt,
				Project:      in.Project,
			},
		})
	}

	plan.BridgeNotices = append(plan.BridgeNotices,
		fmt.Sprintf("critic-reviewer: %d producers, %d reviewers", len(producers), len(reviewers)))
	return plan, nil
}
