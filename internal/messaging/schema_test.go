package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequestParams(t *testing.T) {
	t.Run("valid params pass", func(t *testing.T) {
		res := ValidateRequestParams(RequestNotesSearch, map[string]interface{}{
			"query": "kubernetes",
			"limit": 5,
		})
		assert.True(t, res.Success)
		assert.Equal(t, "kubernetes", res.Data["query"])
	})

	t.Run("missing required parameter", func(t *testing.T) {
		res := ValidateRequestParams(RequestNotesSearch, map[string]interface{}{})
		assert.False(t, res.Success)
		assert.Equal(t, ErrCodeMissingParameter, res.ErrorCode)
		assert.Contains(t, res.ErrorMessage, "query")
	})

	t.Run("wrong parameter type", func(t *testing.T) {
		res := ValidateRequestParams(RequestNoteByID, map[string]interface{}{"id": 42})
		assert.False(t, res.Success)
		assert.Contains(t, res.ErrorMessage, "expected string")
	})

	t.Run("optional parameters may be absent", func(t *testing.T) {
		res := ValidateRequestParams(RequestNotesRecent, map[string]interface{}{})
		assert.True(t, res.Success)
	})

	t.Run("unknown data type passes", func(t *testing.T) {
		res := ValidateRequestParams(RequestType("future-thing"), map[string]interface{}{"whatever": 1})
		assert.True(t, res.Success)
	})
}

func TestValidateNotificationPayload(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		res := ValidateNotificationPayload(NotifyNoteCreated, map[string]interface{}{
			"id":    "abc",
			"title": "Meeting notes",
		})
		assert.True(t, res.Success)
	})

	t.Run("missing id", func(t *testing.T) {
		res := ValidateNotificationPayload(NotifyNoteCreated, map[string]interface{}{})
		assert.False(t, res.Success)
	})

	t.Run("unknown kind passes", func(t *testing.T) {
		res := ValidateNotificationPayload(NotificationType("mystery"), nil)
		assert.True(t, res.Success)
	})
}

func TestMustValidateRequestParams(t *testing.T) {
	_, err := MustValidateRequestParams(RequestNotesSearch, map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeMissingParameter)

	data, err := MustValidateRequestParams(RequestNotesSearch, map[string]interface{}{"query": "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", data["query"])
}

func TestFactory_StampsEnvelope(t *testing.T) {
	req := NewDataRequest("pipeline", "notes-context", RequestNotesSearch,
		map[string]interface{}{"query": "x"}, 0)
	assert.NotEmpty(t, req.Env.ID)
	assert.False(t, req.Env.Timestamp.IsZero())
	assert.Equal(t, CategoryRequest, req.Env.Category)

	other := NewDataRequest("pipeline", "notes-context", RequestNotesSearch, nil, 0)
	assert.NotEqual(t, req.Env.ID, other.Env.ID)

	resp := NewSuccessResponse("notes-context", req, nil)
	assert.Equal(t, req.Env.ID, resp.RequestID)
	assert.Equal(t, "pipeline", resp.Env.TargetContext)

	n := NewNotification("notes-context", BroadcastTarget, NotifyNoteCreated,
		map[string]interface{}{"id": "n1"}, true)
	ack := NewAcknowledgment("profile-context", n, AckProcessed)
	assert.Equal(t, n.Env.ID, ack.NotificationID)
	assert.Equal(t, AckProcessed, ack.Status)
}
