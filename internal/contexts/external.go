package contexts

import (
	"context"
	"fmt"

	"memora/internal/external"
	"memora/internal/messaging"
)

// =============================================================================
// EXTERNAL SOURCES CONTEXT
// =============================================================================

// SourceSearcher is the slice of the external source manager this
// context needs.
type SourceSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]external.Result, error)
	SourceNames() []string
	Availability(ctx context.Context) map[string]bool
}

// ExternalContext serves external-sources-search requests and announces
// completed searches.
type ExternalContext struct {
	manager  SourceSearcher
	notifier Notifier
	enabled  bool
}

// NewExternalContext builds the external sources context. When enabled
// is false every search request answers with an empty result set
// without touching any source.
func NewExternalContext(manager SourceSearcher, notifier Notifier, enabled bool) *ExternalContext {
	return &ExternalContext{manager: manager, notifier: notifier, enabled: enabled}
}

// Handler returns the mediator handler for this context.
func (c *ExternalContext) Handler() messaging.Handler {
	return guard(ExternalContextID, c.handle)
}

func (c *ExternalContext) handle(ctx context.Context, msg messaging.Message) (messaging.Message, error) {
	switch m := msg.(type) {
	case *messaging.DataRequest:
		return c.handleRequest(ctx, m)
	case *messaging.Notification:
		return messaging.NewAcknowledgment(ExternalContextID, m, messaging.AckProcessed), nil
	default:
		return nil, fmt.Errorf("external sources context cannot handle %T", msg)
	}
}

func (c *ExternalContext) handleRequest(ctx context.Context, req *messaging.DataRequest) (messaging.Message, error) {
	if resp := validate(ExternalContextID, req); resp != nil {
		return resp, nil
	}

	switch req.DataType {
	case messaging.RequestExternalSearch:
		return c.search(ctx, req)
	default:
		return unsupported(ExternalContextID, req), nil
	}
}

func (c *ExternalContext) search(ctx context.Context, req *messaging.DataRequest) (messaging.Message, error) {
	query := stringParam(req.Params, "query")
	limit := intParam(req.Params, "limit", 5)

	if !c.enabled {
		return messaging.NewSuccessResponse(ExternalContextID, req, map[string]interface{}{
			"results": []map[string]interface{}{},
			"count":   0,
			"enabled": false,
		}), nil
	}

	results, err := c.manager.Search(ctx, query, limit)
	if err != nil {
		return messaging.NewErrorResponse(ExternalContextID, req,
			messaging.ErrCodeHandlerError,
			"external search failed", err.Error()), nil
	}

	if c.notifier != nil {
		n := messaging.NewNotification(ExternalContextID, messaging.BroadcastTarget,
			messaging.NotifyExternalSearchCompleted, map[string]interface{}{
				"query": query,
				"count": len(results),
			}, false)
		c.notifier.SendNotification(ctx, n)
	}

	return messaging.NewSuccessResponse(ExternalContextID, req, map[string]interface{}{
		"results": resultsToMaps(results),
		"count":   len(results),
		"enabled": true,
	}), nil
}

func resultsToMaps(results []external.Result) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		out = append(out, map[string]interface{}{
			"source":  r.Source,
			"title":   r.Title,
			"url":     r.URL,
			"snippet": r.Snippet,
		})
	}
	return out
}
