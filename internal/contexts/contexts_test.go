package contexts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memora/internal/conversation"
	"memora/internal/external"
	"memora/internal/messaging"
	"memora/internal/notes"
	"memora/internal/profile"
	"memora/internal/website"
)

// ---------------------------------------------------------------------------
// stubs
// ---------------------------------------------------------------------------

type stubNoteStore struct {
	semantic    []*notes.Note
	semanticErr error
	tagged      []*notes.Note
	keyword     []*notes.Note
	recent      []*notes.Note

	calls []string
}

func (s *stubNoteStore) SearchSemantic(ctx context.Context, query string, limit int, minSimilarity float64) ([]*notes.Note, error) {
	s.calls = append(s.calls, "semantic")
	return s.semantic, s.semanticErr
}

func (s *stubNoteStore) SearchTags(tags []string, limit int) ([]*notes.Note, error) {
	s.calls = append(s.calls, "tag")
	return s.tagged, nil
}

func (s *stubNoteStore) SearchKeyword(query string, limit int) ([]*notes.Note, error) {
	s.calls = append(s.calls, "keyword")
	return s.keyword, nil
}

func (s *stubNoteStore) Recent(limit int) ([]*notes.Note, error) {
	s.calls = append(s.calls, "recent")
	return s.recent, nil
}

func (s *stubNoteStore) Related(ctx context.Context, id string, limit int) ([]*notes.Note, error) {
	return nil, nil
}

func (s *stubNoteStore) GetByID(id string) (*notes.Note, error) {
	return nil, errors.New("not found")
}

func (s *stubNoteStore) Create(ctx context.Context, title, content string, tags []string) (*notes.Note, error) {
	return &notes.Note{ID: "n1", Title: title}, nil
}

func (s *stubNoteStore) Update(ctx context.Context, id, title, content string, tags []string) (*notes.Note, error) {
	return &notes.Note{ID: id, Title: title}, nil
}

func (s *stubNoteStore) Delete(id string) error { return nil }

type stubNotifier struct {
	sent []*messaging.Notification
}

func (n *stubNotifier) SendNotification(ctx context.Context, msg *messaging.Notification) []string {
	n.sent = append(n.sent, msg)
	return nil
}

func note(id, title string) *notes.Note {
	return &notes.Note{ID: id, Title: title}
}

func request(target string, dataType messaging.RequestType, params map[string]interface{}) *messaging.DataRequest {
	return messaging.NewDataRequest("test-caller", target, dataType, params, 0)
}

// ---------------------------------------------------------------------------
// notes context
// ---------------------------------------------------------------------------

func TestNotesContextFallbackChain(t *testing.T) {
	ctx := context.Background()

	t.Run("semantic hit stops the chain", func(t *testing.T) {
		store := &stubNoteStore{semantic: []*notes.Note{note("a", "A")}}
		h := NewNotesContext(store, nil).Handler()

		msg, err := h(ctx, request(NotesContextID, messaging.RequestNotesSearch,
			map[string]interface{}{"query": "anything"}))
		require.NoError(t, err)

		resp := msg.(*messaging.DataResponse)
		require.Equal(t, messaging.StatusSuccess, resp.Status)
		assert.Equal(t, "semantic", resp.Data["method"])
		assert.Equal(t, []string{"semantic"}, store.calls)
	})

	t.Run("semantic miss falls to tag then keyword then recent", func(t *testing.T) {
		store := &stubNoteStore{recent: []*notes.Note{note("r", "R")}}
		h := NewNotesContext(store, nil).Handler()

		msg, err := h(ctx, request(NotesContextID, messaging.RequestNotesSearch,
			map[string]interface{}{"query": "anything", "tags": []string{"mcp"}}))
		require.NoError(t, err)

		resp := msg.(*messaging.DataResponse)
		assert.Equal(t, "recent", resp.Data["method"])
		assert.Equal(t, []string{"semantic", "tag", "keyword", "recent"}, store.calls)
	})

	t.Run("semantic error degrades instead of failing", func(t *testing.T) {
		store := &stubNoteStore{
			semanticErr: errors.New("no engine"),
			keyword:     []*notes.Note{note("k", "K")},
		}
		h := NewNotesContext(store, nil).Handler()

		msg, err := h(ctx, request(NotesContextID, messaging.RequestNotesSearch,
			map[string]interface{}{"query": "anything"}))
		require.NoError(t, err)

		resp := msg.(*messaging.DataResponse)
		require.Equal(t, messaging.StatusSuccess, resp.Status)
		assert.Equal(t, "keyword", resp.Data["method"])
	})

	t.Run("tag stage skipped without tags", func(t *testing.T) {
		store := &stubNoteStore{keyword: []*notes.Note{note("k", "K")}}
		h := NewNotesContext(store, nil).Handler()

		_, err := h(ctx, request(NotesContextID, messaging.RequestNotesSearch,
			map[string]interface{}{"query": "anything"}))
		require.NoError(t, err)
		assert.Equal(t, []string{"semantic", "keyword"}, store.calls)
	})
}

func TestNotesContextValidation(t *testing.T) {
	h := NewNotesContext(&stubNoteStore{}, nil).Handler()

	msg, err := h(context.Background(), request(NotesContextID, messaging.RequestNotesSearch, nil))
	require.NoError(t, err)

	resp := msg.(*messaging.DataResponse)
	assert.True(t, resp.IsError())
	assert.Equal(t, messaging.ErrCodeMissingParameter, resp.ErrorCode())
}

func TestNotesContextUnsupportedDataType(t *testing.T) {
	h := NewNotesContext(&stubNoteStore{}, nil).Handler()

	msg, err := h(context.Background(), request(NotesContextID, messaging.RequestWebsiteStatus, nil))
	require.NoError(t, err)

	resp := msg.(*messaging.DataResponse)
	assert.Equal(t, messaging.ErrCodeUnsupportedDataType, resp.ErrorCode())
}

func TestNotesContextCRUDNotifications(t *testing.T) {
	ctx := context.Background()
	notifier := &stubNotifier{}
	c := NewNotesContext(&stubNoteStore{}, notifier)

	n, err := c.CreateNote(ctx, "Title", "Body", []string{"t"})
	require.NoError(t, err)
	_, err = c.UpdateNote(ctx, n.ID, "Title 2", "Body 2", nil)
	require.NoError(t, err)
	require.NoError(t, c.DeleteNote(ctx, n.ID))

	require.Len(t, notifier.sent, 3)
	assert.Equal(t, messaging.NotifyNoteCreated, notifier.sent[0].NotificationType)
	assert.Equal(t, messaging.NotifyNoteUpdated, notifier.sent[1].NotificationType)
	assert.Equal(t, messaging.NotifyNoteDeleted, notifier.sent[2].NotificationType)
}

// ---------------------------------------------------------------------------
// profile context
// ---------------------------------------------------------------------------

type stubProfileStore struct {
	p         *profile.Profile
	reloads   int
	reloadErr error
}

func (s *stubProfileStore) Get() *profile.Profile { return s.p }
func (s *stubProfileStore) Reload() error {
	s.reloads++
	return s.reloadErr
}

func TestProfileContextData(t *testing.T) {
	store := &stubProfileStore{p: &profile.Profile{Name: "Dana", Headline: "Platform engineer"}}
	h := NewProfileContext(store).Handler()

	msg, err := h(context.Background(), request(ProfileContextID, messaging.RequestProfileData, nil))
	require.NoError(t, err)

	resp := msg.(*messaging.DataResponse)
	require.Equal(t, messaging.StatusSuccess, resp.Status)
	assert.Equal(t, "Dana", resp.Data["name"])
	assert.Contains(t, resp.Data["text"], "Platform engineer")
}

func TestProfileContextReloadOnNotification(t *testing.T) {
	store := &stubProfileStore{p: &profile.Profile{}}
	h := NewProfileContext(store).Handler()

	n := messaging.NewNotification("watcher", ProfileContextID, messaging.NotifyProfileUpdated, nil, true)
	msg, err := h(context.Background(), n)
	require.NoError(t, err)

	ack := msg.(*messaging.Acknowledgment)
	assert.Equal(t, messaging.AckProcessed, ack.Status)
	assert.Equal(t, 1, store.reloads)
}

func TestProfileContextRejectsFailedReload(t *testing.T) {
	store := &stubProfileStore{p: &profile.Profile{}, reloadErr: errors.New("bad yaml")}
	h := NewProfileContext(store).Handler()

	n := messaging.NewNotification("watcher", ProfileContextID, messaging.NotifyProfileUpdated, nil, true)
	msg, err := h(context.Background(), n)
	require.NoError(t, err)

	ack := msg.(*messaging.Acknowledgment)
	assert.Equal(t, messaging.AckRejected, ack.Status)
}

func TestProfileContextAcksUnknownNotification(t *testing.T) {
	store := &stubProfileStore{p: &profile.Profile{}}
	h := NewProfileContext(store).Handler()

	n := messaging.NewNotification("someone", ProfileContextID, "brand-new-kind", nil, true)
	msg, err := h(context.Background(), n)
	require.NoError(t, err)

	ack := msg.(*messaging.Acknowledgment)
	assert.Equal(t, messaging.AckProcessed, ack.Status)
	assert.Zero(t, store.reloads)
}

// ---------------------------------------------------------------------------
// conversation context
// ---------------------------------------------------------------------------

type stubConversationStore struct {
	active string
	turns  []*conversation.Turn
}

func (s *stubConversationStore) ActiveID() string { return s.active }
func (s *stubConversationStore) RecentTurns(conversationID string, limit int) ([]*conversation.Turn, error) {
	return s.turns, nil
}
func (s *stubConversationStore) FormatHistory(conversationID string, limit int) string {
	return "User: hi\nAssistant: hello"
}

func TestConversationContextHistory(t *testing.T) {
	store := &stubConversationStore{
		active: "conv-1",
		turns:  []*conversation.Turn{{ID: "t1", Query: "hi", Answer: "hello"}},
	}
	h := NewConversationContext(store).Handler()

	msg, err := h(context.Background(), request(ConversationContextID, messaging.RequestConversationLog, nil))
	require.NoError(t, err)

	resp := msg.(*messaging.DataResponse)
	require.Equal(t, messaging.StatusSuccess, resp.Status)
	assert.Equal(t, "conv-1", resp.Data["conversationId"])
	assert.Contains(t, resp.Data["formatted"], "Assistant: hello")
}

// ---------------------------------------------------------------------------
// external sources context
// ---------------------------------------------------------------------------

type stubSourceManager struct {
	results  []external.Result
	searches int
}

func (s *stubSourceManager) Search(ctx context.Context, query string, limit int) ([]external.Result, error) {
	s.searches++
	return s.results, nil
}
func (s *stubSourceManager) SourceNames() []string { return []string{"stub"} }
func (s *stubSourceManager) Availability(ctx context.Context) map[string]bool {
	return map[string]bool{"stub": true}
}

func TestExternalContextDisabledSkipsSources(t *testing.T) {
	mgr := &stubSourceManager{results: []external.Result{{Title: "hit"}}}
	h := NewExternalContext(mgr, nil, false).Handler()

	msg, err := h(context.Background(), request(ExternalContextID, messaging.RequestExternalSearch,
		map[string]interface{}{"query": "golang"}))
	require.NoError(t, err)

	resp := msg.(*messaging.DataResponse)
	require.Equal(t, messaging.StatusSuccess, resp.Status)
	assert.Equal(t, 0, resp.Data["count"])
	assert.Equal(t, false, resp.Data["enabled"])
	assert.Zero(t, mgr.searches, "disabled context must not touch sources")
}

func TestExternalContextSearchNotifies(t *testing.T) {
	mgr := &stubSourceManager{results: []external.Result{{Source: "stub", Title: "hit"}}}
	notifier := &stubNotifier{}
	h := NewExternalContext(mgr, notifier, true).Handler()

	msg, err := h(context.Background(), request(ExternalContextID, messaging.RequestExternalSearch,
		map[string]interface{}{"query": "golang"}))
	require.NoError(t, err)

	resp := msg.(*messaging.DataResponse)
	assert.Equal(t, 1, resp.Data["count"])
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, messaging.NotifyExternalSearchCompleted, notifier.sent[0].NotificationType)
}

// ---------------------------------------------------------------------------
// website context
// ---------------------------------------------------------------------------

type stubSiteManager struct {
	generated bool
	deployed  bool
}

func (s *stubSiteManager) Status(ctx context.Context) (*website.Status, error) {
	return &website.Status{SiteDir: "/tmp/site", Exists: true, PageCount: 4}, nil
}
func (s *stubSiteManager) Generate(ctx context.Context) (*website.Status, error) {
	s.generated = true
	return &website.Status{Exists: true, PageCount: 4}, nil
}
func (s *stubSiteManager) Deploy(ctx context.Context) (*website.Status, error) {
	s.deployed = true
	return &website.Status{Exists: true, PageCount: 4, Deployed: true}, nil
}

func TestWebsiteContextStatusAndCommands(t *testing.T) {
	ctx := context.Background()
	mgr := &stubSiteManager{}
	h := NewWebsiteContext(mgr).Handler()

	msg, err := h(ctx, request(WebsiteContextID, messaging.RequestWebsiteStatus, nil))
	require.NoError(t, err)
	resp := msg.(*messaging.DataResponse)
	assert.Equal(t, 4, resp.Data["pageCount"])

	msg, err = h(ctx, request(WebsiteContextID, messaging.RequestCommandExecute,
		map[string]interface{}{"command": "generate"}))
	require.NoError(t, err)
	assert.Equal(t, messaging.StatusSuccess, msg.(*messaging.DataResponse).Status)
	assert.True(t, mgr.generated)

	msg, err = h(ctx, request(WebsiteContextID, messaging.RequestCommandExecute,
		map[string]interface{}{"command": "self-destruct"}))
	require.NoError(t, err)
	assert.Equal(t, messaging.ErrCodeUnsupportedDataType, msg.(*messaging.DataResponse).ErrorCode())
	assert.False(t, mgr.deployed)
}

func TestWebsiteContextStaleAfterNoteChange(t *testing.T) {
	ctx := context.Background()
	h := NewWebsiteContext(&stubSiteManager{}).Handler()

	msg, err := h(ctx, request(WebsiteContextID, messaging.RequestWebsiteStatus, nil))
	require.NoError(t, err)
	assert.Equal(t, false, msg.(*messaging.DataResponse).Data["stale"])

	n := messaging.NewNotification("notes-context", WebsiteContextID, messaging.NotifyNoteCreated,
		map[string]interface{}{"id": "n1"}, false)
	ack, err := h(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, messaging.AckProcessed, ack.(*messaging.Acknowledgment).Status)

	msg, err = h(ctx, request(WebsiteContextID, messaging.RequestWebsiteStatus, nil))
	require.NoError(t, err)
	assert.Equal(t, true, msg.(*messaging.DataResponse).Data["stale"])

	// Regenerating clears the flag.
	_, err = h(ctx, request(WebsiteContextID, messaging.RequestCommandExecute,
		map[string]interface{}{"command": "generate"}))
	require.NoError(t, err)

	msg, err = h(ctx, request(WebsiteContextID, messaging.RequestWebsiteStatus, nil))
	require.NoError(t, err)
	assert.Equal(t, false, msg.(*messaging.DataResponse).Data["stale"])
}

// ---------------------------------------------------------------------------
// guard
// ---------------------------------------------------------------------------

func TestGuardConvertsPanicToHandlerError(t *testing.T) {
	h := guard("panicky-context", func(ctx context.Context, msg messaging.Message) (messaging.Message, error) {
		panic("boom")
	})

	msg, err := h(context.Background(), request("panicky-context", messaging.RequestNotesRecent, nil))
	require.NoError(t, err)

	resp := msg.(*messaging.DataResponse)
	assert.Equal(t, messaging.ErrCodeHandlerError, resp.ErrorCode())
	assert.Contains(t, resp.Err.Details, "boom")
}
