package contexts

import (
	"context"
	"fmt"

	"memora/internal/conversation"
	"memora/internal/messaging"
)

// =============================================================================
// CONVERSATION CONTEXT
// =============================================================================

// ConversationReader is the slice of the conversation store this context
// needs.
type ConversationReader interface {
	ActiveID() string
	RecentTurns(conversationID string, limit int) ([]*conversation.Turn, error)
	FormatHistory(conversationID string, limit int) string
}

// ConversationContext serves conversation-history requests.
type ConversationContext struct {
	store ConversationReader
}

// NewConversationContext builds the conversation context.
func NewConversationContext(store ConversationReader) *ConversationContext {
	return &ConversationContext{store: store}
}

// Handler returns the mediator handler for this context.
func (c *ConversationContext) Handler() messaging.Handler {
	return guard(ConversationContextID, c.handle)
}

func (c *ConversationContext) handle(ctx context.Context, msg messaging.Message) (messaging.Message, error) {
	switch m := msg.(type) {
	case *messaging.DataRequest:
		return c.handleRequest(m)
	case *messaging.Notification:
		return messaging.NewAcknowledgment(ConversationContextID, m, messaging.AckProcessed), nil
	default:
		return nil, fmt.Errorf("conversation context cannot handle %T", msg)
	}
}

func (c *ConversationContext) handleRequest(req *messaging.DataRequest) (messaging.Message, error) {
	if resp := validate(ConversationContextID, req); resp != nil {
		return resp, nil
	}

	switch req.DataType {
	case messaging.RequestConversationLog:
		conversationID := stringParam(req.Params, "conversationId")
		if conversationID == "" {
			conversationID = c.store.ActiveID()
		}
		limit := intParam(req.Params, "limit", 10)

		turns, err := c.store.RecentTurns(conversationID, limit)
		if err != nil {
			return messaging.NewErrorResponse(ConversationContextID, req,
				messaging.ErrCodeHandlerError,
				"history lookup failed", err.Error()), nil
		}

		return messaging.NewSuccessResponse(ConversationContextID, req, map[string]interface{}{
			"conversationId": conversationID,
			"turns":          turnsToMaps(turns),
			"formatted":      c.store.FormatHistory(conversationID, limit),
		}), nil
	default:
		return unsupported(ConversationContextID, req), nil
	}
}

func turnsToMaps(turns []*conversation.Turn) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(turns))
	for _, t := range turns {
		out = append(out, map[string]interface{}{
			"id":        t.ID,
			"query":     t.Query,
			"answer":    t.Answer,
			"createdAt": t.CreatedAt,
		})
	}
	return out
}
