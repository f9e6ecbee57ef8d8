// Package orchestrator is the composition root: it constructs the
// stores, mediator, context handlers, and pipeline from configuration,
// wires the static subscription graph, and owns process lifecycle
// (profile watcher, timeout sweep).
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"memora/internal/config"
	"memora/internal/contexts"
	"memora/internal/conversation"
	"memora/internal/embedding"
	"memora/internal/external"
	"memora/internal/llm"
	"memora/internal/logging"
	"memora/internal/messaging"
	"memora/internal/notes"
	"memora/internal/pipeline"
	"memora/internal/profile"
	"memora/internal/website"
)

// OrchestratorContextID identifies the orchestrator as a message source.
const OrchestratorContextID = "orchestrator"

// Orchestrator holds the wired object graph.
type Orchestrator struct {
	cfg *config.Config

	mediator     *messaging.Mediator
	noteStore    *notes.Store
	profileStore *profile.Store
	convStore    *conversation.Store
	externalMgr  *external.Manager
	siteManager  *website.Manager
	engine       embedding.Engine
	model        llm.Client

	notesCtx *contexts.NotesContext
	pipeline *pipeline.Pipeline

	watcher   *profile.Watcher
	sweepStop chan struct{}
	sweepDone chan struct{}
}

// New wires the full object graph from cfg. The model client is nil
// when no API key is configured; the pipeline then returns degraded
// answers and callers should surface that to the user.
func New(cfg *config.Config) (*Orchestrator, error) {
	o := &Orchestrator{cfg: cfg}

	requestTimeout := config.ParseDuration(cfg.Mediator.RequestTimeout, messaging.DefaultRequestTimeout)
	o.mediator = messaging.NewMediator(messaging.WithDefaultTimeout(requestTimeout))

	var err error
	o.noteStore, err = notes.NewStore(cfg.Memory.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open note store: %w", err)
	}

	o.convStore, err = conversation.NewStore(cfg.Memory.DatabasePath)
	if err != nil {
		o.noteStore.Close()
		return nil, fmt.Errorf("failed to open conversation store: %w", err)
	}

	o.profileStore, err = profile.NewStore(cfg.Memory.ProfilePath)
	if err != nil {
		o.closeStores()
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if cfg.LLM.APIKey != "" {
		o.engine, err = embedding.NewGenAIEngine(cfg.LLM.APIKey, cfg.Embedding.Model, cfg.Embedding.TaskType)
		if err != nil {
			logging.Boot("Embedding engine unavailable, retrieval degrades to keyword: %v", err)
			o.engine = nil
		} else {
			o.noteStore.SetEmbeddingEngine(o.engine)
		}

		timeout := config.ParseDuration(cfg.LLM.Timeout, 2*time.Minute)
		o.model, err = llm.NewGenAIClient(cfg.LLM.APIKey, cfg.LLM.Model, timeout)
		if err != nil {
			o.closeStores()
			return nil, fmt.Errorf("failed to create model client: %w", err)
		}
	}

	o.externalMgr = buildExternalManager(cfg.External)
	o.siteManager = website.NewManager(cfg.Website.OutputDir, cfg.Website.OutputDir+".deploy", o.siteNotifier())

	o.registerContexts()

	o.pipeline = pipeline.New(
		o.noteStore,
		pipeline.RelevanceAdapter{Store: o.profileStore, Engine: o.engine},
		o.convStore,
		o.externalMgr,
		o.modelOrNoop(),
		o.mediator,
		pipeline.Settings{
			MaxNotes:        cfg.Retrieval.MaxNotes,
			MinSimilarity:   cfg.Retrieval.MinSimilarity,
			ExternalEnabled: cfg.External.Enabled,
			ExternalLimit:   cfg.External.MaxResults,
			TopicKeywords:   cfg.Retrieval.TopicKeywords,
		},
	)

	return o, nil
}

// registerContexts registers the five handlers and the static
// subscription graph.
func (o *Orchestrator) registerContexts() {
	o.notesCtx = contexts.NewNotesContext(o.noteStore, o.mediator)
	profileCtx := contexts.NewProfileContext(o.profileStore)
	convCtx := contexts.NewConversationContext(o.convStore)
	externalCtx := contexts.NewExternalContext(o.externalMgr, o.mediator, o.cfg.External.Enabled)
	websiteCtx := contexts.NewWebsiteContext(o.siteManager)

	o.mediator.RegisterHandler(contexts.NotesContextID, o.notesCtx.Handler())
	o.mediator.RegisterHandler(contexts.ProfileContextID, profileCtx.Handler())
	o.mediator.RegisterHandler(contexts.ConversationContextID, convCtx.Handler())
	o.mediator.RegisterHandler(contexts.ExternalContextID, externalCtx.Handler())
	o.mediator.RegisterHandler(contexts.WebsiteContextID, websiteCtx.Handler())

	// Static subscription graph. The profile context reloads on profile
	// changes; the website context marks the site stale when notes change.
	o.mediator.Subscribe(contexts.ProfileContextID, messaging.NotifyProfileUpdated)
	o.mediator.Subscribe(contexts.WebsiteContextID, messaging.NotifyNoteCreated)
	o.mediator.Subscribe(contexts.WebsiteContextID, messaging.NotifyNoteUpdated)
	o.mediator.Subscribe(contexts.WebsiteContextID, messaging.NotifyNoteDeleted)
	o.mediator.Subscribe(contexts.ConversationContextID, messaging.NotifyConversationTurnAdded)

	logging.Boot("Registered %d contexts", 5)
}

// Start launches the profile watcher and the timeout sweep. It returns
// after announcing startup; background work stops on Close.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.cfg.Memory.WatchProfile {
		watcher, err := profile.NewWatcher(o.profileStore, func() {
			n := messaging.NewNotification(OrchestratorContextID, messaging.BroadcastTarget,
				messaging.NotifyProfileUpdated, nil, false)
			o.mediator.SendNotification(context.Background(), n)
		})
		if err != nil {
			logging.Boot("Profile watcher unavailable: %v", err)
		} else {
			o.watcher = watcher
			o.watcher.Start(ctx)
		}
	}

	o.sweepStop = make(chan struct{})
	o.sweepDone = make(chan struct{})
	interval := config.ParseDuration(o.cfg.Mediator.SweepInterval, 10*time.Second)
	go o.sweepLoop(interval)

	n := messaging.NewNotification(OrchestratorContextID, messaging.BroadcastTarget,
		messaging.NotifyExternalStatus, map[string]interface{}{
			"enabled": o.cfg.External.Enabled,
		}, false)
	o.mediator.SendNotification(ctx, n)

	logging.Boot("%s %s started", o.cfg.Name, o.cfg.Version)
	return nil
}

// sweepLoop reaps timed-out pending requests on a fixed cadence.
func (o *Orchestrator) sweepLoop(interval time.Duration) {
	defer close(o.sweepDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if reaped := o.mediator.CleanupTimedOutRequests(); reaped > 0 {
				logging.MediatorDebug("Sweep reaped %d timed-out requests", reaped)
			}
		case <-o.sweepStop:
			return
		}
	}
}

// Pipeline returns the query pipeline.
func (o *Orchestrator) Pipeline() *pipeline.Pipeline { return o.pipeline }

// Mediator returns the message mediator.
func (o *Orchestrator) Mediator() *messaging.Mediator { return o.mediator }

// Notes returns the notes context, the entry point for note CRUD.
func (o *Orchestrator) Notes() *contexts.NotesContext { return o.notesCtx }

// NoteCount reports how many notes are stored.
func (o *Orchestrator) NoteCount() (int, error) { return o.noteStore.Count() }

// RecentNotes lists the most recently updated notes.
func (o *Orchestrator) RecentNotes(limit int) ([]*notes.Note, error) {
	return o.noteStore.Recent(limit)
}

// Profile returns the profile store.
func (o *Orchestrator) Profile() *profile.Store { return o.profileStore }

// HasModel reports whether a model client is configured.
func (o *Orchestrator) HasModel() bool { return o.model != nil }

// Close stops background work and closes the stores.
func (o *Orchestrator) Close() error {
	if o.sweepStop != nil {
		close(o.sweepStop)
		<-o.sweepDone
	}
	if o.watcher != nil {
		o.watcher.Stop()
	}
	if o.engine != nil {
		o.engine.Close()
	}
	o.closeStores()
	return nil
}

func (o *Orchestrator) closeStores() {
	if o.convStore != nil {
		o.convStore.Close()
	}
	if o.noteStore != nil {
		o.noteStore.Close()
	}
}

func (o *Orchestrator) modelOrNoop() llm.Client {
	if o.model != nil {
		return o.model
	}
	return unavailableModel{}
}

// siteNotifier adapts website manager events to mediator notifications.
func (o *Orchestrator) siteNotifier() website.Notifier {
	return func(event string, payload map[string]interface{}) {
		kind := messaging.NotifyWebsiteGenerated
		if event == "deployed" {
			kind = messaging.NotifyWebsiteDeployed
		}
		n := messaging.NewNotification(contexts.WebsiteContextID, messaging.BroadcastTarget, kind, payload, false)
		o.mediator.SendNotification(context.Background(), n)
	}
}

// buildExternalManager constructs sources from config. Unknown kinds
// are skipped with a log line rather than failing startup.
func buildExternalManager(cfg config.ExternalConfig) *external.Manager {
	timeout := config.ParseDuration(cfg.Timeout, 15*time.Second)
	var sources []external.Source
	for _, sc := range cfg.Sources {
		switch sc.Kind {
		case "json":
			sources = append(sources, external.NewJSONSource(sc.Name, sc.BaseURL))
		case "html":
			sources = append(sources, external.NewPageSource(sc.Name, sc.BaseURL))
		default:
			logging.External("Skipping source %q: unknown kind %q", sc.Name, sc.Kind)
		}
	}
	return external.NewManager(sources, timeout, cfg.MaxResults)
}

// unavailableModel answers every completion request with an error so
// the pipeline degrades instead of panicking on a nil client.
type unavailableModel struct{}

func (unavailableModel) Complete(ctx context.Context, systemPrompt, userPrompt string) (*llm.Completion, error) {
	return nil, fmt.Errorf("no model configured: set GEMINI_API_KEY")
}

func (unavailableModel) CompleteStructured(ctx context.Context, systemPrompt, userPrompt string, schema *llm.OutputSchema) (*llm.Completion, error) {
	return nil, fmt.Errorf("no model configured: set GEMINI_API_KEY")
}
