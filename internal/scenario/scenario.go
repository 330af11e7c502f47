// Package scenario holds the compiled-in catalog of practice prompts.
package scenario

import "strings"

// Mode is the speaking skill a scenario trains.
type Mode string

const (
	ModeStorytelling     Mode = "Storytelling"
	ModeLogicalReasoning Mode = "Logical Reasoning"
	ModePersuasion       Mode = "Persuasion"
	ModeDailySocial      Mode = "Daily Social"
	ModeInterviewPrep    Mode = "Interview Prep"
)

// Scenario is one immutable practice prompt and its evaluation rubric.
type Scenario struct {
	ID               string
	Mode             Mode
	Title            string
	Description      string
	EvaluationPrompt string
}

var catalog = []Scenario{
	{
		ID:               "1",
		Mode:             ModeLogicalReasoning,
		Title:            "The Coffee Shop Dilemma",
		Description:      "Explain why a local business should switch to sustainable packaging in under 2 minutes.",
		EvaluationPrompt: "Evaluate the speaker's logical flow, evidence used, and clarity of the argument for switching to sustainable packaging.",
	},
	{
		ID:               "2",
		Mode:             ModeStorytelling,
		Title:            "A Childhood Wonder",
		Description:      "Describe a moment from your childhood that changed how you see the world.",
		EvaluationPrompt: "Analyze the speaker's narrative structure, emotional engagement, and descriptive language usage.",
	},
	{
		ID:               "3",
		Mode:             ModePersuasion,
		Title:            "Funding the Future",
		Description:      "Pitch a new community park project to a skeptical city council.",
		EvaluationPrompt: "Assess the speaker's persuasive techniques, use of rhetorical devices, and call to action.",
	},
	{
		ID:               "4",
		Mode:             ModeInterviewPrep,
		Title:            "The Weakness Question",
		Description:      `Answer the classic: "What is your greatest weakness?" with a focus on growth.`,
		EvaluationPrompt: "Evaluate the authenticity, self-awareness, and professional framing of the answer.",
	},
}

// Catalog returns a copy of every scenario in display order.
func Catalog() []Scenario {
	out := make([]Scenario, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a scenario by id, falling back to a case-insensitive title match.
func Lookup(key string) (Scenario, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Scenario{}, false
	}
	for _, s := range catalog {
		if s.ID == key {
			return s, true
		}
	}
	for _, s := range catalog {
		if strings.EqualFold(s.Title, key) {
			return s, true
		}
	}
	return Scenario{}, false
}
