package messaging

import (
	"fmt"
)

// =============================================================================
// PARAMETER SCHEMAS
// =============================================================================
//
// Central registry mapping request and notification types to the shape
// of their parameter/payload maps. This is the only place structural
// validation happens: the factory stamps envelopes without looking at
// params, and the mediator routes without looking at them either.
// Unknown types validate successfully because both enumerations are
// open.

// FieldKind is the expected dynamic type of a parameter value.
type FieldKind int

const (
	KindString FieldKind = iota
	KindNumber
	KindBool
	KindAny
)

func (k FieldKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "any"
	}
}

// Field describes one parameter.
type Field struct {
	Kind     FieldKind
	Required bool
}

// Schema describes the parameter map for one message type.
type Schema map[string]Field

// ValidationResult reports the outcome of a validation without
// panicking or returning a Go error; callers that want hard failure use
// the Must variants.
type ValidationResult struct {
	Success      bool
	Data         map[string]interface{}
	ErrorCode    string
	ErrorMessage string
}

var requestSchemas = map[RequestType]Schema{
	RequestNotesSearch: {
		"query":          {Kind: KindString, Required: true},
		"limit":          {Kind: KindNumber},
		"includeContent": {Kind: KindBool},
	},
	RequestNoteByID: {
		"id": {Kind: KindString, Required: true},
	},
	RequestNotesRelated: {
		"id":    {Kind: KindString, Required: true},
		"limit": {Kind: KindNumber},
	},
	RequestNotesRecent: {
		"limit": {Kind: KindNumber},
	},
	RequestProfileData: {},
	RequestConversationLog: {
		"conversationId": {Kind: KindString},
		"limit":          {Kind: KindNumber},
	},
	RequestExternalSearch: {
		"query": {Kind: KindString, Required: true},
		"limit": {Kind: KindNumber},
	},
	RequestWebsiteStatus: {},
	RequestCommandExecute: {
		"command": {Kind: KindString, Required: true},
		"args":    {Kind: KindAny},
	},
	RequestQueryProcess: {
		"query":  {Kind: KindString, Required: true},
		"roomId": {Kind: KindString},
	},
}

var notificationSchemas = map[NotificationType]Schema{
	NotifyNoteCreated:             {"id": {Kind: KindString, Required: true}, "title": {Kind: KindString}},
	NotifyNoteUpdated:             {"id": {Kind: KindString, Required: true}},
	NotifyNoteDeleted:             {"id": {Kind: KindString, Required: true}},
	NotifyProfileUpdated:          {},
	NotifyConversationStarted:     {"conversationId": {Kind: KindString, Required: true}},
	NotifyConversationCleared:     {"conversationId": {Kind: KindString, Required: true}},
	NotifyConversationTurnAdded:   {"conversationId": {Kind: KindString, Required: true}, "turnId": {Kind: KindString}},
	NotifyExternalStatus:          {"enabled": {Kind: KindBool, Required: true}},
	NotifyExternalAvailability:    {"available": {Kind: KindBool, Required: true}},
	NotifyExternalSearchCompleted: {"query": {Kind: KindString, Required: true}, "count": {Kind: KindNumber}},
	NotifyWebsiteGenerated:        {"pages": {Kind: KindNumber}},
	NotifyWebsiteDeployed:         {"url": {Kind: KindString}},
}

// ValidateRequestParams checks params against the schema registered for
// dataType. Unknown types pass.
func ValidateRequestParams(dataType RequestType, params map[string]interface{}) ValidationResult {
	schema, ok := requestSchemas[dataType]
	if !ok {
		return ValidationResult{Success: true, Data: params}
	}
	return validate(schema, params)
}

// ValidateNotificationPayload checks payload against the schema
// registered for kind. Unknown kinds pass.
func ValidateNotificationPayload(kind NotificationType, payload map[string]interface{}) ValidationResult {
	schema, ok := notificationSchemas[kind]
	if !ok {
		return ValidationResult{Success: true, Data: payload}
	}
	return validate(schema, payload)
}

// MustValidateRequestParams is the error-returning variant for callers
// that treat invalid params as a hard failure.
func MustValidateRequestParams(dataType RequestType, params map[string]interface{}) (map[string]interface{}, error) {
	res := ValidateRequestParams(dataType, params)
	if !res.Success {
		return nil, fmt.Errorf("%s: %s", res.ErrorCode, res.ErrorMessage)
	}
	return res.Data, nil
}

func validate(schema Schema, params map[string]interface{}) ValidationResult {
	for name, field := range schema {
		value, present := params[name]
		if !present {
			if field.Required {
				return ValidationResult{
					ErrorCode:    ErrCodeMissingParameter,
					ErrorMessage: fmt.Sprintf("missing required parameter %q", name),
				}
			}
			continue
		}
		if !kindMatches(field.Kind, value) {
			return ValidationResult{
				ErrorCode:    ErrCodeMissingParameter,
				ErrorMessage: fmt.Sprintf("parameter %q: expected %s, got %T", name, field.Kind, value),
			}
		}
	}
	return ValidationResult{Success: true, Data: params}
}

func kindMatches(kind FieldKind, value interface{}) bool {
	switch kind {
	case KindString:
		_, ok := value.(string)
		return ok
	case KindNumber:
		switch value.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case KindBool:
		_, ok := value.(bool)
		return ok
	default:
		return true
	}
}
