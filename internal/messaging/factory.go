package messaging

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// MESSAGE FACTORY
// =============================================================================
//
// Stateless constructors. Every message gets a fresh uuid and timestamp
// here so nothing malformed at the envelope level can reach the
// mediator. Field-level validation is the schema registry's job, not
// the factory's.

func newEnvelope(category Category, source, target string) Envelope {
	return Envelope{
		ID:            uuid.NewString(),
		Timestamp:     time.Now(),
		Category:      category,
		SourceContext: source,
		TargetContext: target,
	}
}

// NewDataRequest builds a request for dataType addressed to target.
// A zero timeout defers to the mediator default.
func NewDataRequest(source, target string, dataType RequestType, params map[string]interface{}, timeout time.Duration) *DataRequest {
	return &DataRequest{
		Env:      newEnvelope(CategoryRequest, source, target),
		DataType: dataType,
		Params:   params,
		Timeout:  timeout,
	}
}

// NewSuccessResponse answers req with a data payload.
func NewSuccessResponse(source string, req *DataRequest, data map[string]interface{}) *DataResponse {
	return &DataResponse{
		Env:       newEnvelope(CategoryResponse, source, req.Env.SourceContext),
		RequestID: req.Env.ID,
		Status:    StatusSuccess,
		Data:      data,
	}
}

// NewPartialResponse answers req with an incomplete payload. Used when
// a context could satisfy only part of the request.
func NewPartialResponse(source string, req *DataRequest, data map[string]interface{}) *DataResponse {
	return &DataResponse{
		Env:       newEnvelope(CategoryResponse, source, req.Env.SourceContext),
		RequestID: req.Env.ID,
		Status:    StatusPartial,
		Data:      data,
	}
}

// NewErrorResponse answers req with an error record.
func NewErrorResponse(source string, req *DataRequest, code, message, details string) *DataResponse {
	return &DataResponse{
		Env:       newEnvelope(CategoryResponse, source, req.Env.SourceContext),
		RequestID: req.Env.ID,
		Status:    StatusError,
		Err:       &ErrorInfo{Code: code, Message: message, Details: details},
	}
}

// NewNotification builds a notification. Target may be BroadcastTarget.
func NewNotification(source, target string, notificationType NotificationType, payload map[string]interface{}, requiresAck bool) *Notification {
	return &Notification{
		Env:              newEnvelope(CategoryNotification, source, target),
		NotificationType: notificationType,
		Payload:          payload,
		RequiresAck:      requiresAck,
	}
}

// NewAcknowledgment confirms receipt of n with the given status.
func NewAcknowledgment(source string, n *Notification, status AckStatus) *Acknowledgment {
	return &Acknowledgment{
		Env:            newEnvelope(CategoryResponse, source, n.Env.SourceContext),
		NotificationID: n.Env.ID,
		Status:         status,
	}
}
