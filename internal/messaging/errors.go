package messaging

import "errors"

// Error codes carried in DataResponse.Err.Code. Routing and execution
// failures surface as error-shaped responses, never as panics across
// the mediator boundary.
const (
	ErrCodeContextNotFound     = "CONTEXT_NOT_FOUND"
	ErrCodeHandlerError        = "HANDLER_ERROR"
	ErrCodeRequestTimeout      = "REQUEST_TIMEOUT"
	ErrCodeUnsupportedDataType = "UNSUPPORTED_DATA_TYPE"
	ErrCodeMissingParameter    = "MISSING_PARAMETER"
)

// ErrRequestTimeout is returned by SendRequest when the target handler
// does not settle within the request deadline. Timeout is the one
// mediator failure that surfaces as an error rather than an
// error-shaped response: there is no response to hand back.
var ErrRequestTimeout = errors.New("request timed out")
