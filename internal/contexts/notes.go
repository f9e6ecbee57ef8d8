package contexts

import (
	"context"
	"fmt"

	"memora/internal/logging"
	"memora/internal/messaging"
	"memora/internal/notes"
)

// =============================================================================
// NOTES CONTEXT
// =============================================================================

// NoteSearcher is the slice of the note store this context needs.
type NoteSearcher interface {
	SearchSemantic(ctx context.Context, query string, limit int, minSimilarity float64) ([]*notes.Note, error)
	SearchTags(tags []string, limit int) ([]*notes.Note, error)
	SearchKeyword(query string, limit int) ([]*notes.Note, error)
	Recent(limit int) ([]*notes.Note, error)
	Related(ctx context.Context, id string, limit int) ([]*notes.Note, error)
	GetByID(id string) (*notes.Note, error)
	Create(ctx context.Context, title, content string, tags []string) (*notes.Note, error)
	Update(ctx context.Context, id, title, content string, tags []string) (*notes.Note, error)
	Delete(id string) error
}

// NotesContext serves note retrieval requests and emits note lifecycle
// notifications for CRUD performed through it.
type NotesContext struct {
	store    NoteSearcher
	notifier Notifier
}

// NewNotesContext builds the notes context. notifier may be nil when no
// one listens (tests, the kb-dump tool).
func NewNotesContext(store NoteSearcher, notifier Notifier) *NotesContext {
	return &NotesContext{store: store, notifier: notifier}
}

// Handler returns the mediator handler for this context.
func (c *NotesContext) Handler() messaging.Handler {
	return guard(NotesContextID, c.handle)
}

func (c *NotesContext) handle(ctx context.Context, msg messaging.Message) (messaging.Message, error) {
	switch m := msg.(type) {
	case *messaging.DataRequest:
		return c.handleRequest(ctx, m)
	case *messaging.Notification:
		// Nothing to react to yet; acknowledge so senders that require
		// an ack are not left waiting.
		return messaging.NewAcknowledgment(NotesContextID, m, messaging.AckProcessed), nil
	default:
		return nil, fmt.Errorf("notes context cannot handle %T", msg)
	}
}

func (c *NotesContext) handleRequest(ctx context.Context, req *messaging.DataRequest) (messaging.Message, error) {
	if resp := validate(NotesContextID, req); resp != nil {
		return resp, nil
	}

	switch req.DataType {
	case messaging.RequestNotesSearch:
		return c.search(ctx, req)
	case messaging.RequestNoteByID:
		return c.byID(req)
	case messaging.RequestNotesRelated:
		return c.related(ctx, req)
	case messaging.RequestNotesRecent:
		return c.recent(req)
	default:
		return unsupported(NotesContextID, req), nil
	}
}

// search runs the retrieval fallback chain: semantic first, then tag
// match, then keyword, then recent. The first stage that yields notes
// wins; stage failures degrade to the next stage instead of failing the
// request.
func (c *NotesContext) search(ctx context.Context, req *messaging.DataRequest) (messaging.Message, error) {
	query := stringParam(req.Params, "query")
	limit := intParam(req.Params, "limit", 5)
	minSim := floatParam(req.Params, "minSimilarity", 0.3)
	tags := stringsParam(req.Params, "tags")

	found, method := c.fallbackSearch(ctx, query, tags, limit, minSim)
	logging.NotesDebug("Search %q via %s: %d notes", query, method, len(found))

	return messaging.NewSuccessResponse(NotesContextID, req, map[string]interface{}{
		"notes":  notesToMaps(found),
		"method": method,
		"count":  len(found),
	}), nil
}

func (c *NotesContext) fallbackSearch(ctx context.Context, query string, tags []string, limit int, minSim float64) ([]*notes.Note, string) {
	if found, err := c.store.SearchSemantic(ctx, query, limit, minSim); err != nil {
		logging.NotesDebug("Semantic search failed, falling back: %v", err)
	} else if len(found) > 0 {
		return found, "semantic"
	}

	if len(tags) > 0 {
		if found, err := c.store.SearchTags(tags, limit); err != nil {
			logging.NotesDebug("Tag search failed, falling back: %v", err)
		} else if len(found) > 0 {
			return found, "tag"
		}
	}

	if found, err := c.store.SearchKeyword(query, limit); err != nil {
		logging.NotesDebug("Keyword search failed, falling back: %v", err)
	} else if len(found) > 0 {
		return found, "keyword"
	}

	found, err := c.store.Recent(limit)
	if err != nil {
		logging.NotesDebug("Recent fallback failed: %v", err)
		return nil, "none"
	}
	return found, "recent"
}

func (c *NotesContext) byID(req *messaging.DataRequest) (messaging.Message, error) {
	id := stringParam(req.Params, "id")
	note, err := c.store.GetByID(id)
	if err != nil {
		return messaging.NewErrorResponse(NotesContextID, req,
			messaging.ErrCodeHandlerError,
			fmt.Sprintf("note %s not found", id), err.Error()), nil
	}
	return messaging.NewSuccessResponse(NotesContextID, req, map[string]interface{}{
		"note": noteToMap(note),
	}), nil
}

func (c *NotesContext) related(ctx context.Context, req *messaging.DataRequest) (messaging.Message, error) {
	id := stringParam(req.Params, "id")
	limit := intParam(req.Params, "limit", 3)
	found, err := c.store.Related(ctx, id, limit)
	if err != nil {
		return messaging.NewErrorResponse(NotesContextID, req,
			messaging.ErrCodeHandlerError,
			"related lookup failed", err.Error()), nil
	}
	return messaging.NewSuccessResponse(NotesContextID, req, map[string]interface{}{
		"notes": notesToMaps(found),
		"count": len(found),
	}), nil
}

func (c *NotesContext) recent(req *messaging.DataRequest) (messaging.Message, error) {
	limit := intParam(req.Params, "limit", 5)
	found, err := c.store.Recent(limit)
	if err != nil {
		return messaging.NewErrorResponse(NotesContextID, req,
			messaging.ErrCodeHandlerError,
			"recent lookup failed", err.Error()), nil
	}
	return messaging.NewSuccessResponse(NotesContextID, req, map[string]interface{}{
		"notes": notesToMaps(found),
		"count": len(found),
	}), nil
}

// CreateNote writes a note through the store and announces it.
func (c *NotesContext) CreateNote(ctx context.Context, title, content string, tags []string) (*notes.Note, error) {
	note, err := c.store.Create(ctx, title, content, tags)
	if err != nil {
		return nil, err
	}
	c.announce(ctx, messaging.NotifyNoteCreated, map[string]interface{}{
		"id":    note.ID,
		"title": note.Title,
	})
	return note, nil
}

// UpdateNote updates a note through the store and announces it.
func (c *NotesContext) UpdateNote(ctx context.Context, id, title, content string, tags []string) (*notes.Note, error) {
	note, err := c.store.Update(ctx, id, title, content, tags)
	if err != nil {
		return nil, err
	}
	c.announce(ctx, messaging.NotifyNoteUpdated, map[string]interface{}{"id": note.ID})
	return note, nil
}

// DeleteNote deletes a note through the store and announces it.
func (c *NotesContext) DeleteNote(ctx context.Context, id string) error {
	if err := c.store.Delete(id); err != nil {
		return err
	}
	c.announce(ctx, messaging.NotifyNoteDeleted, map[string]interface{}{"id": id})
	return nil
}

func (c *NotesContext) announce(ctx context.Context, kind messaging.NotificationType, payload map[string]interface{}) {
	if c.notifier == nil {
		return
	}
	n := messaging.NewNotification(NotesContextID, messaging.BroadcastTarget, kind, payload, false)
	c.notifier.SendNotification(ctx, n)
}

func noteToMap(n *notes.Note) map[string]interface{} {
	return map[string]interface{}{
		"id":         n.ID,
		"title":      n.Title,
		"content":    n.Content,
		"tags":       n.Tags,
		"similarity": n.Similarity,
		"createdAt":  n.CreatedAt,
		"updatedAt":  n.UpdatedAt,
	}
}

func notesToMaps(list []*notes.Note) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(list))
	for _, n := range list {
		out = append(out, noteToMap(n))
	}
	return out
}
