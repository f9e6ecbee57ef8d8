package pipeline

import (
	"context"
	"fmt"
	"strings"

	"memora/internal/embedding"
	"memora/internal/external"
	"memora/internal/llm"
	"memora/internal/logging"
	"memora/internal/messaging"
	"memora/internal/notes"
	"memora/internal/profile"
)

// PipelineContextID identifies the pipeline as a notification source.
const PipelineContextID = "query-pipeline"

// Pipeline orchestrates one query end to end. Collaborators are injected
// at construction; the composition root wires the object graph once per
// process.
type Pipeline struct {
	notes        NoteRetriever
	profile      ProfileSource
	conversation ConversationLog
	externalMgr  ExternalSearcher
	model        llm.Client
	notifier     Notifier
	settings     Settings
}

// New builds a pipeline. externalMgr and notifier may be nil; the
// corresponding stages degrade to empty results and silence.
func New(noteStore NoteRetriever, profileStore ProfileSource, conv ConversationLog,
	externalMgr ExternalSearcher, model llm.Client, notifier Notifier, settings Settings) *Pipeline {
	if settings.MaxNotes <= 0 {
		settings.MaxNotes = DefaultSettings().MaxNotes
	}
	if settings.HistoryTurns <= 0 {
		settings.HistoryTurns = DefaultSettings().HistoryTurns
	}
	if settings.ExternalLimit <= 0 {
		settings.ExternalLimit = DefaultSettings().ExternalLimit
	}
	return &Pipeline{
		notes:        noteStore,
		profile:      profileStore,
		conversation: conv,
		externalMgr:  externalMgr,
		model:        model,
		notifier:     notifier,
		settings:     settings,
	}
}

// ProcessQuery runs the fixed stage sequence. The only fatal failure is
// being unable to bind any active conversation; every later stage
// degrades to an empty or fallback value.
func (p *Pipeline) ProcessQuery(ctx context.Context, text string, opts Options) (*QueryResult, error) {
	// Stage 1: conversation binding.
	conversationID, err := p.bindConversation(ctx, opts.RoomID)
	if err != nil {
		return nil, fmt.Errorf("no active conversation: %w", err)
	}

	// Stage 2: profile relevance.
	relevance := p.profile.RelevanceFor(ctx, text)
	logging.PipelineDebug("Profile relevance %.2f via %s", relevance.Score, relevance.Method)

	// Stage 3: note retrieval with the fallback chain.
	found, method := p.fetchRelevantNotes(ctx, text)
	logging.Pipeline("Retrieved %d notes via %s", len(found), method)

	citations := make([]Citation, 0, len(found))
	for i, n := range found {
		citations = append(citations, Citation{Index: i + 1, Note: n})
	}

	// Stage 4: conversation history. FormatHistory never errors; any
	// underlying failure surfaces as an empty string.
	history := p.conversation.FormatHistory(conversationID, p.settings.HistoryTurns)

	// Stage 5: external sources.
	externalResults := p.fetchExternalSources(ctx, text, found)

	// Stage 6: prompt assembly.
	systemPrompt, userPrompt := assemblePrompt(promptInput{
		query:     text,
		history:   history,
		profile:   p.profile.Get(),
		relevance: relevance,
		citations: citations,
		external:  externalResults,
	})

	// Stage 7: model invocation. Failure degrades to an empty answer so
	// the caller still gets citations and related notes.
	result := &QueryResult{
		Citations:        citations,
		ExternalSources:  externalResults,
		RetrievalMethod:  method,
		ProfileRelevance: relevance,
	}
	completion, err := p.invokeModel(ctx, systemPrompt, userPrompt, opts.OutputSchema)
	if err != nil {
		logging.Pipeline("Model invocation failed, returning degraded result: %v", err)
	} else {
		result.Answer = completion.Text
		result.Structured = completion.Structured
		result.Usage = completion.Usage
	}

	// Stage 8: best-effort turn persistence.
	p.persistTurn(ctx, conversationID, text, result, method)

	// Stage 9: related notes for the top citation.
	if len(found) > 0 {
		related, err := p.notes.Related(ctx, found[0].ID, 3)
		if err != nil {
			logging.PipelineDebug("Related lookup failed: %v", err)
		} else {
			result.RelatedNotes = related
		}
	}

	return result, nil
}

// bindConversation switches to the requested room or ensures a default
// conversation exists, announcing newly created conversations.
func (p *Pipeline) bindConversation(ctx context.Context, roomID string) (string, error) {
	if roomID != "" {
		conv, created, err := p.conversation.SwitchRoom(roomID)
		if err != nil {
			return "", err
		}
		if created {
			p.announce(ctx, messaging.NotifyConversationStarted, map[string]interface{}{
				"conversationId": conv.ID,
			})
		}
		return conv.ID, nil
	}

	conv, created, err := p.conversation.EnsureActive()
	if err != nil {
		return "", err
	}
	if created {
		p.announce(ctx, messaging.NotifyConversationStarted, map[string]interface{}{
			"conversationId": conv.ID,
		})
	}
	return conv.ID, nil
}

// fetchRelevantNotes runs the retrieval fallback chain: semantic, then
// tag, then keyword, then recent. The first stage with hits wins; stage
// errors degrade to the next stage. Tag candidates come from explicit
// #tag tokens and the configured topic vocabulary.
func (p *Pipeline) fetchRelevantNotes(ctx context.Context, query string) ([]*notes.Note, string) {
	limit := p.settings.MaxNotes

	if found, err := p.notes.SearchSemantic(ctx, query, limit, p.settings.MinSimilarity); err != nil {
		logging.PipelineDebug("Semantic search failed: %v", err)
	} else if len(found) > 0 {
		return found, "semantic"
	}

	if tags := extractTags(query, p.settings.TopicKeywords); len(tags) > 0 {
		if found, err := p.notes.SearchTags(tags, limit); err != nil {
			logging.PipelineDebug("Tag search failed: %v", err)
		} else if len(found) > 0 {
			return found, "tag"
		}
	}

	if found, err := p.notes.SearchKeyword(query, limit); err != nil {
		logging.PipelineDebug("Keyword search failed: %v", err)
	} else if len(found) > 0 {
		return found, "keyword"
	}

	found, err := p.notes.Recent(limit)
	if err != nil {
		logging.PipelineDebug("Recent fallback failed: %v", err)
		return nil, "none"
	}
	return found, "recent"
}

// fetchExternalSources returns nil when the feature is disabled, when
// the found notes already cover the query, or on any failure.
func (p *Pipeline) fetchExternalSources(ctx context.Context, query string, found []*notes.Note) []external.Result {
	if !p.settings.ExternalEnabled || p.externalMgr == nil {
		return nil
	}
	if notesCoverQuery(query, found) {
		logging.PipelineDebug("Notes cover the query, skipping external sources")
		return nil
	}

	results, err := p.externalMgr.Search(ctx, query, p.settings.ExternalLimit)
	if err != nil {
		logging.Pipeline("External search failed: %v", err)
		return nil
	}
	p.announce(ctx, messaging.NotifyExternalSearchCompleted, map[string]interface{}{
		"query": query,
		"count": len(results),
	})
	return results
}

// notesCoverQuery decides whether retrieved notes make the external
// call unnecessary: enough notes whose combined text mentions most of
// the query's significant words.
func notesCoverQuery(query string, found []*notes.Note) bool {
	if len(found) < 2 {
		return false
	}

	var combined strings.Builder
	for _, n := range found {
		combined.WriteString(strings.ToLower(n.Title))
		combined.WriteByte(' ')
		combined.WriteString(strings.ToLower(n.Content))
		combined.WriteByte(' ')
	}
	text := combined.String()

	words := significantWords(query)
	if len(words) == 0 {
		return true
	}
	covered := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			covered++
		}
	}
	return float64(covered)/float64(len(words)) >= 0.6
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"what": true, "who": true, "how": true, "why": true, "when": true,
	"my": true, "me": true, "i": true, "do": true, "does": true,
	"about": true, "of": true, "to": true, "in": true, "on": true,
}

func significantWords(query string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, "?!.,#")
		if len(w) < 3 || stopWords[w] {
			continue
		}
		words = append(words, w)
	}
	return words
}

func (p *Pipeline) invokeModel(ctx context.Context, systemPrompt, userPrompt string, schema *llm.OutputSchema) (*llm.Completion, error) {
	if schema != nil {
		return p.model.CompleteStructured(ctx, systemPrompt, userPrompt, schema)
	}
	return p.model.Complete(ctx, systemPrompt, userPrompt)
}

// persistTurn saves the turn with attribution metadata. Failure is
// logged and swallowed.
func (p *Pipeline) persistTurn(ctx context.Context, conversationID, query string, result *QueryResult, method string) {
	citedIDs := make([]string, 0, len(result.Citations))
	for _, c := range result.Citations {
		citedIDs = append(citedIDs, c.Note.ID)
	}
	metadata := map[string]interface{}{
		"retrievalMethod": method,
		"citedNoteIds":    citedIDs,
		"externalCount":   len(result.ExternalSources),
		"totalTokens":     result.Usage.TotalTokens,
	}

	turn, err := p.conversation.AddTurn(conversationID, query, result.Answer, metadata)
	if err != nil {
		logging.Pipeline("Turn persistence failed: %v", err)
		return
	}
	p.announce(ctx, messaging.NotifyConversationTurnAdded, map[string]interface{}{
		"conversationId": conversationID,
		"turnId":         turn.ID,
	})
}

func (p *Pipeline) announce(ctx context.Context, kind messaging.NotificationType, payload map[string]interface{}) {
	if p.notifier == nil {
		return
	}
	n := messaging.NewNotification(PipelineContextID, messaging.BroadcastTarget, kind, payload, false)
	p.notifier.SendNotification(ctx, n)
}

// RelevanceAdapter glues a profile store and an embedding engine into
// the ProfileSource interface.
type RelevanceAdapter struct {
	Store  *profile.Store
	Engine embedding.Engine
}

func (a RelevanceAdapter) Get() *profile.Profile { return a.Store.Get() }

func (a RelevanceAdapter) RelevanceFor(ctx context.Context, query string) profile.Relevance {
	return a.Store.Relevance(ctx, a.Engine, query)
}
