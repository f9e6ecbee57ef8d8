// Package messaging implements the cross-context message mediator:
// envelope types, the message factory, parameter schemas, and the
// mediator itself. Contexts never hold references to each other; every
// cross-context request, response, and notification flows through here.
package messaging

import (
	"time"
)

// Category discriminates the message union.
type Category string

const (
	CategoryRequest      Category = "request"
	CategoryResponse     Category = "response"
	CategoryNotification Category = "notification"
)

// BroadcastTarget addresses a notification to every registered context.
const BroadcastTarget = "*"

// RequestType tags a data request. The enumeration is open: contexts
// may introduce new types without a mediator change.
type RequestType string

const (
	RequestNotesSearch     RequestType = "notes-search"
	RequestNoteByID        RequestType = "note-by-id"
	RequestNotesRelated    RequestType = "notes-related"
	RequestNotesRecent     RequestType = "notes-recent"
	RequestProfileData     RequestType = "profile-data"
	RequestConversationLog RequestType = "conversation-history"
	RequestExternalSearch  RequestType = "external-sources-search"
	RequestWebsiteStatus   RequestType = "website-status"
	RequestCommandExecute  RequestType = "command-execute"
	RequestQueryProcess    RequestType = "query-process"
)

// NotificationType tags a notification. Also an open enumeration;
// unknown kinds are acknowledged, not rejected, so new kinds can ship
// without breaking older subscribers.
type NotificationType string

const (
	NotifyNoteCreated             NotificationType = "note-created"
	NotifyNoteUpdated             NotificationType = "note-updated"
	NotifyNoteDeleted             NotificationType = "note-deleted"
	NotifyProfileUpdated          NotificationType = "profile-updated"
	NotifyConversationStarted     NotificationType = "conversation-started"
	NotifyConversationCleared     NotificationType = "conversation-cleared"
	NotifyConversationTurnAdded   NotificationType = "conversation-turn-added"
	NotifyExternalStatus          NotificationType = "external-sources-status"
	NotifyExternalAvailability    NotificationType = "external-sources-availability"
	NotifyExternalSearchCompleted NotificationType = "external-sources-search-completed"
	NotifyWebsiteGenerated        NotificationType = "website-generated"
	NotifyWebsiteDeployed         NotificationType = "website-deployed"
)

// ResponseStatus reports the outcome carried by a DataResponse.
type ResponseStatus string

const (
	StatusSuccess ResponseStatus = "success"
	StatusError   ResponseStatus = "error"
	StatusPartial ResponseStatus = "partial"
)

// AckStatus reports how a notification was handled.
type AckStatus string

const (
	AckReceived  AckStatus = "received"
	AckProcessed AckStatus = "processed"
	AckRejected  AckStatus = "rejected"
)

// Envelope carries the fields shared by every message. Messages are
// immutable once built by the factory; nothing in this package mutates
// one after construction.
type Envelope struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Category      Category  `json:"category"`
	SourceContext string    `json:"sourceContext"`
	TargetContext string    `json:"targetContext"`
}

// Message is the closed set of envelope types. Handlers type-switch on
// the concrete type; the envelope method exists so the mediator can
// route without caring which member it holds.
type Message interface {
	Envelope() Envelope
}

// DataRequest asks a context for data.
type DataRequest struct {
	Env      Envelope               `json:"envelope"`
	DataType RequestType            `json:"dataType"`
	Params   map[string]interface{} `json:"parameters,omitempty"`
	// Timeout bounds the mediator's wait for a response. Zero means
	// the mediator default applies.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// ErrorInfo is the error record carried by failed responses.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// DataResponse answers one DataRequest. Exactly one of Data/Err is
// meaningful, selected by Status.
type DataResponse struct {
	Env       Envelope               `json:"envelope"`
	RequestID string                 `json:"requestId"`
	Status    ResponseStatus         `json:"status"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Err       *ErrorInfo             `json:"error,omitempty"`
}

// Notification is a one-way event fanned out to subscribers.
type Notification struct {
	Env              Envelope               `json:"envelope"`
	NotificationType NotificationType       `json:"notificationType"`
	Payload          map[string]interface{} `json:"payload,omitempty"`
	RequiresAck      bool                   `json:"requiresAck"`
}

// Acknowledgment confirms receipt of a notification.
type Acknowledgment struct {
	Env            Envelope  `json:"envelope"`
	NotificationID string    `json:"notificationId"`
	Status         AckStatus `json:"status"`
}

func (m *DataRequest) Envelope() Envelope    { return m.Env }
func (m *DataResponse) Envelope() Envelope   { return m.Env }
func (m *Notification) Envelope() Envelope   { return m.Env }
func (m *Acknowledgment) Envelope() Envelope { return m.Env }

// IsError reports whether the response carries an error.
func (m *DataResponse) IsError() bool { return m.Status == StatusError }

// ErrorCode returns the error code, or "" for non-error responses.
func (m *DataResponse) ErrorCode() string {
	if m.Err == nil {
		return ""
	}
	return m.Err.Code
}
