// Package contexts hosts the handler for each registered context. A
// handler owns no cross-context references; it closes over its own
// subsystem and turns mediator messages into calls on it. Requests it
// does not understand come back as UNSUPPORTED_DATA_TYPE, notifications
// it does not understand are acknowledged as processed so new kinds can
// ship without breaking older contexts.
package contexts

import (
	"context"
	"fmt"

	"memora/internal/messaging"
)

// Context IDs as registered with the mediator.
const (
	NotesContextID        = "notes-context"
	ProfileContextID      = "profile-context"
	ConversationContextID = "conversation-context"
	ExternalContextID     = "external-sources-context"
	WebsiteContextID      = "website-context"
)

// Notifier is the slice of the mediator that handlers use to emit
// fire-and-forget notifications.
type Notifier interface {
	SendNotification(ctx context.Context, n *messaging.Notification) []string
}

// guard wraps a handler so a panic inside it becomes a HANDLER_ERROR
// response instead of escaping to the mediator.
func guard(contextID string, inner messaging.Handler) messaging.Handler {
	return func(ctx context.Context, msg messaging.Message) (out messaging.Message, err error) {
		defer func() {
			if r := recover(); r != nil {
				if req, ok := msg.(*messaging.DataRequest); ok {
					out = messaging.NewErrorResponse(contextID, req,
						messaging.ErrCodeHandlerError,
						fmt.Sprintf("panic in %s", contextID),
						fmt.Sprintf("%v", r))
					err = nil
					return
				}
				err = fmt.Errorf("panic in %s: %v", contextID, r)
			}
		}()
		return inner(ctx, msg)
	}
}

// unsupported answers a request whose DataType the context does not
// serve.
func unsupported(contextID string, req *messaging.DataRequest) *messaging.DataResponse {
	return messaging.NewErrorResponse(contextID, req,
		messaging.ErrCodeUnsupportedDataType,
		fmt.Sprintf("%s does not serve data type %q", contextID, req.DataType),
		"")
}

// missingParam answers a request that failed schema validation.
func missingParam(contextID string, req *messaging.DataRequest, detail string) *messaging.DataResponse {
	return messaging.NewErrorResponse(contextID, req,
		messaging.ErrCodeMissingParameter,
		fmt.Sprintf("invalid parameters for %q", req.DataType),
		detail)
}

// validate runs the schema registry over the request and returns a
// ready error response when validation fails.
func validate(contextID string, req *messaging.DataRequest) *messaging.DataResponse {
	result := messaging.ValidateRequestParams(req.DataType, req.Params)
	if result.Success {
		return nil
	}
	return missingParam(contextID, req, result.ErrorMessage)
}

// stringParam reads a required string parameter.
func stringParam(params map[string]interface{}, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

// intParam reads an integer parameter. JSON round-trips land numbers as
// float64, so both representations are accepted.
func intParam(params map[string]interface{}, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return fallback
}

// floatParam reads a float parameter.
func floatParam(params map[string]interface{}, key string, fallback float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

// stringsParam reads a string-slice parameter, tolerating the
// []interface{} shape that JSON decoding produces.
func stringsParam(params map[string]interface{}, key string) []string {
	switch v := params[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
