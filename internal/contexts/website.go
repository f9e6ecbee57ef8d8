package contexts

import (
	"context"
	"fmt"
	"sync"

	"memora/internal/messaging"
	"memora/internal/website"
)

// =============================================================================
// WEBSITE CONTEXT
// =============================================================================

// SiteManager is the slice of the site manager this context needs.
type SiteManager interface {
	Status(ctx context.Context) (*website.Status, error)
	Generate(ctx context.Context) (*website.Status, error)
	Deploy(ctx context.Context) (*website.Status, error)
}

// WebsiteContext serves website-status requests and the generate/deploy
// commands. Note-change notifications mark the published site stale
// until the next generate.
type WebsiteContext struct {
	manager SiteManager

	mu    sync.Mutex
	stale bool
}

// NewWebsiteContext builds the website context.
func NewWebsiteContext(manager SiteManager) *WebsiteContext {
	return &WebsiteContext{manager: manager}
}

// Handler returns the mediator handler for this context.
func (c *WebsiteContext) Handler() messaging.Handler {
	return guard(WebsiteContextID, c.handle)
}

func (c *WebsiteContext) handle(ctx context.Context, msg messaging.Message) (messaging.Message, error) {
	switch m := msg.(type) {
	case *messaging.DataRequest:
		return c.handleRequest(ctx, m)
	case *messaging.Notification:
		return c.handleNotification(m), nil
	default:
		return nil, fmt.Errorf("website context cannot handle %T", msg)
	}
}

func (c *WebsiteContext) handleNotification(n *messaging.Notification) messaging.Message {
	switch n.NotificationType {
	case messaging.NotifyNoteCreated, messaging.NotifyNoteUpdated, messaging.NotifyNoteDeleted:
		c.mu.Lock()
		c.stale = true
		c.mu.Unlock()
	}
	return messaging.NewAcknowledgment(WebsiteContextID, n, messaging.AckProcessed)
}

func (c *WebsiteContext) handleRequest(ctx context.Context, req *messaging.DataRequest) (messaging.Message, error) {
	if resp := validate(WebsiteContextID, req); resp != nil {
		return resp, nil
	}

	switch req.DataType {
	case messaging.RequestWebsiteStatus:
		st, err := c.manager.Status(ctx)
		if err != nil {
			return messaging.NewErrorResponse(WebsiteContextID, req,
				messaging.ErrCodeHandlerError,
				"status check failed", err.Error()), nil
		}
		return messaging.NewSuccessResponse(WebsiteContextID, req, c.statusToMap(st)), nil

	case messaging.RequestCommandExecute:
		return c.execute(ctx, req)

	default:
		return unsupported(WebsiteContextID, req), nil
	}
}

func (c *WebsiteContext) execute(ctx context.Context, req *messaging.DataRequest) (messaging.Message, error) {
	command := stringParam(req.Params, "command")

	var (
		st  *website.Status
		err error
	)
	switch command {
	case "generate":
		st, err = c.manager.Generate(ctx)
		if err == nil {
			c.mu.Lock()
			c.stale = false
			c.mu.Unlock()
		}
	case "deploy":
		st, err = c.manager.Deploy(ctx)
	default:
		return messaging.NewErrorResponse(WebsiteContextID, req,
			messaging.ErrCodeUnsupportedDataType,
			fmt.Sprintf("unknown website command %q", command), ""), nil
	}
	if err != nil {
		return messaging.NewErrorResponse(WebsiteContextID, req,
			messaging.ErrCodeHandlerError,
			fmt.Sprintf("website %s failed", command), err.Error()), nil
	}
	return messaging.NewSuccessResponse(WebsiteContextID, req, c.statusToMap(st)), nil
}

func (c *WebsiteContext) statusToMap(st *website.Status) map[string]interface{} {
	c.mu.Lock()
	stale := c.stale
	c.mu.Unlock()
	return map[string]interface{}{
		"siteDir":   st.SiteDir,
		"exists":    st.Exists,
		"pageCount": st.PageCount,
		"deployed":  st.Deployed,
		"stale":     stale,
	}
}
