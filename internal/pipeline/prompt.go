package pipeline

import (
	"fmt"
	"strings"

	"memora/internal/external"
	"memora/internal/profile"
)

// =============================================================================
// PROMPT ASSEMBLY
// =============================================================================
//
// Section order is fixed: conversation history, profile, cited notes,
// external sources. The system prompt variant and the prefix sentence
// both depend on which sections are non-empty, so the model always sees
// an accurate description of the context it was given.

const (
	systemPromptBase = "You are a personal knowledge assistant. Answer the user's question " +
		"using the provided context. When you use a note, cite it by its index " +
		"in square brackets, like [1]. If the context does not cover the " +
		"question, say so instead of inventing facts."

	systemPromptProfile = systemPromptBase + " The user's profile is included; " +
		"personalize the answer to who they are."

	systemPromptExternal = systemPromptBase + " External source snippets are " +
		"included; treat them as less authoritative than the user's own notes " +
		"and mention the source when you rely on one."

	systemPromptProfileExternal = systemPromptBase + " The user's profile and " +
		"external source snippets are both included; personalize the answer " +
		"and mention external sources when you rely on them."
)

// promptInput is everything prompt assembly consumes.
type promptInput struct {
	query     string
	history   string
	profile   *profile.Profile
	relevance profile.Relevance
	citations []Citation
	external  []external.Result
}

// selectSystemPrompt picks one of the four fixed variants by which
// context kinds are present.
func selectSystemPrompt(hasProfile, hasExternal bool) string {
	switch {
	case hasProfile && hasExternal:
		return systemPromptProfileExternal
	case hasProfile:
		return systemPromptProfile
	case hasExternal:
		return systemPromptExternal
	default:
		return systemPromptBase
	}
}

// prefixSentence describes the supplied context combination to the
// model. Wording varies with exactly which of profile, notes, and
// external sources are non-empty.
func prefixSentence(hasProfile, hasNotes, hasExternal bool) string {
	switch {
	case hasProfile && hasNotes && hasExternal:
		return "Context from the user's profile, their notes, and external sources follows."
	case hasProfile && hasNotes:
		return "Context from the user's profile and their notes follows."
	case hasProfile && hasExternal:
		return "Context from the user's profile and external sources follows."
	case hasNotes && hasExternal:
		return "Context from the user's notes and external sources follows."
	case hasProfile:
		return "Context from the user's profile follows."
	case hasNotes:
		return "Context from the user's notes follows."
	case hasExternal:
		return "Context from external sources follows."
	default:
		return "No stored context matched this question."
	}
}

// assemblePrompt builds the system and user prompts.
func assemblePrompt(in promptInput) (systemPrompt, userPrompt string) {
	hasProfile := in.profile != nil && in.relevance.Related && strings.TrimSpace(in.profile.Text()) != ""
	hasNotes := len(in.citations) > 0
	hasExternal := len(in.external) > 0

	var b strings.Builder
	b.WriteString(prefixSentence(hasProfile, hasNotes, hasExternal))
	b.WriteString("\n")

	if in.history != "" {
		b.WriteString("\n## Conversation so far\n")
		b.WriteString(in.history)
		b.WriteString("\n")
	}

	if hasProfile {
		b.WriteString("\n## User profile\n")
		// Strong relevance earns the full profile; weak relevance only
		// the one-line summary.
		if in.relevance.Score >= 0.7 {
			b.WriteString(in.profile.Text())
		} else {
			b.WriteString(in.profile.Summary())
			b.WriteString("\n")
		}
	}

	if hasNotes {
		b.WriteString("\n## Notes\n")
		for _, c := range in.citations {
			fmt.Fprintf(&b, "[%d] %s\n%s\n", c.Index, c.Note.Title, c.Note.Excerpt(600))
			if len(c.Note.Tags) > 0 {
				fmt.Fprintf(&b, "Tags: %s\n", strings.Join(c.Note.Tags, ", "))
			}
		}
	}

	if hasExternal {
		b.WriteString("\n## External sources\n")
		for _, r := range in.external {
			fmt.Fprintf(&b, "- %s (%s): %s\n", r.Title, r.Source, r.Snippet)
		}
	}

	b.WriteString("\n## Question\n")
	b.WriteString(in.query)

	return selectSystemPrompt(hasProfile, hasExternal), b.String()
}
