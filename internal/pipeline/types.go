// Package pipeline turns one user query into one answer: relevance
// analysis, note retrieval with graceful fallback, history and external
// lookup, prompt assembly, the model call, and best-effort persistence.
// Every stage except conversation binding degrades instead of failing.
package pipeline

import (
	"context"

	"memora/internal/conversation"
	"memora/internal/external"
	"memora/internal/llm"
	"memora/internal/messaging"
	"memora/internal/notes"
	"memora/internal/profile"
)

// Options tunes one ProcessQuery call.
type Options struct {
	// RoomID switches the active conversation before processing. Empty
	// means keep (or create) the default conversation.
	RoomID string

	// OutputSchema, when set, asks the model for a structured object in
	// addition to the prose answer.
	OutputSchema *llm.OutputSchema
}

// Citation is one retrieved note with the index used to reference it in
// the prompt and the answer. Indices start at 1.
type Citation struct {
	Index int         `json:"index"`
	Note  *notes.Note `json:"note"`
}

// QueryResult is the pipeline's output.
type QueryResult struct {
	Answer          string                 `json:"answer"`
	Citations       []Citation             `json:"citations"`
	RelatedNotes    []*notes.Note          `json:"relatedNotes,omitempty"`
	ExternalSources []external.Result      `json:"externalSources,omitempty"`
	Structured      map[string]interface{} `json:"structured,omitempty"`
	Usage           llm.UsageMetadata      `json:"usage"`

	// RetrievalMethod records which fallback stage produced the
	// citations: semantic, tag, keyword, recent, or none.
	RetrievalMethod string `json:"retrievalMethod"`

	// ProfileRelevance is the score that drove profile section sizing.
	ProfileRelevance profile.Relevance `json:"profileRelevance"`
}

// NoteRetriever is the slice of the note store the pipeline needs.
type NoteRetriever interface {
	SearchSemantic(ctx context.Context, query string, limit int, minSimilarity float64) ([]*notes.Note, error)
	SearchTags(tags []string, limit int) ([]*notes.Note, error)
	SearchKeyword(query string, limit int) ([]*notes.Note, error)
	Recent(limit int) ([]*notes.Note, error)
	Related(ctx context.Context, id string, limit int) ([]*notes.Note, error)
}

// ProfileSource provides the profile text and relevance scoring.
type ProfileSource interface {
	Get() *profile.Profile
	RelevanceFor(ctx context.Context, query string) profile.Relevance
}

// ConversationLog is the slice of the conversation store the pipeline
// needs.
type ConversationLog interface {
	SwitchRoom(roomID string) (*conversation.Conversation, bool, error)
	EnsureActive() (*conversation.Conversation, bool, error)
	AddTurn(conversationID, query, answer string, metadata map[string]interface{}) (*conversation.Turn, error)
	FormatHistory(conversationID string, limit int) string
}

// ExternalSearcher fans a query out to external sources.
type ExternalSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]external.Result, error)
}

// Notifier emits fire-and-forget notifications through the mediator.
type Notifier interface {
	SendNotification(ctx context.Context, n *messaging.Notification) []string
}

// Settings is the retrieval policy the pipeline runs under.
type Settings struct {
	MaxNotes        int
	MinSimilarity   float64
	HistoryTurns    int
	ExternalEnabled bool
	ExternalLimit   int

	// TopicKeywords maps a tag to the query phrases that imply it.
	TopicKeywords map[string][]string
}

// DefaultSettings returns the baseline retrieval policy.
func DefaultSettings() Settings {
	return Settings{
		MaxNotes:      5,
		MinSimilarity: 0.5,
		HistoryTurns:  10,
		ExternalLimit: 3,
	}
}
