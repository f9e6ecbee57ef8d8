package messaging

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// echoHandler answers every request with a success response carrying
// the request's own params.
func echoHandler(contextID string) Handler {
	return func(ctx context.Context, msg Message) (Message, error) {
		req, ok := msg.(*DataRequest)
		if !ok {
			return nil, nil
		}
		return NewSuccessResponse(contextID, req, req.Params), nil
	}
}

func TestSendRequest_CorrelatesResponse(t *testing.T) {
	m := NewMediator()
	m.RegisterHandler("notes-context", echoHandler("notes-context"))

	req := NewDataRequest("test", "notes-context", RequestNotesSearch,
		map[string]interface{}{"query": "golang"}, 0)
	resp, err := m.SendRequest(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, req.Env.ID, resp.RequestID)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "golang", resp.Data["query"])
	assert.Equal(t, 0, m.PendingCount())
}

func TestSendRequest_UnknownTarget(t *testing.T) {
	m := NewMediator()

	req := NewDataRequest("test", "ghost-context", RequestNotesSearch,
		map[string]interface{}{"query": "x"}, 0)

	start := time.Now()
	resp, err := m.SendRequest(context.Background(), req)
	require.NoError(t, err)

	// Resolves synchronously: no pending entry, no timer wait.
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, ErrCodeContextNotFound, resp.ErrorCode())
	assert.Equal(t, 0, m.PendingCount())
}

func TestSendRequest_HandlerError(t *testing.T) {
	m := NewMediator()
	m.RegisterHandler("broken", func(ctx context.Context, msg Message) (Message, error) {
		return nil, errors.New("storage offline")
	})

	req := NewDataRequest("test", "broken", RequestProfileData, nil, 0)
	resp, err := m.SendRequest(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, ErrCodeHandlerError, resp.ErrorCode())
	assert.Contains(t, resp.Err.Message, "storage offline")
	assert.Equal(t, 0, m.PendingCount())
}

func TestSendRequest_HandlerPanic(t *testing.T) {
	m := NewMediator()
	m.RegisterHandler("panicky", func(ctx context.Context, msg Message) (Message, error) {
		panic("boom")
	})

	req := NewDataRequest("test", "panicky", RequestProfileData, nil, 0)
	resp, err := m.SendRequest(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, ErrCodeHandlerError, resp.ErrorCode())
	assert.Equal(t, 0, m.PendingCount())
}

func TestSendRequest_Timeout(t *testing.T) {
	m := NewMediator()
	release := make(chan struct{})
	m.RegisterHandler("slow", func(ctx context.Context, msg Message) (Message, error) {
		<-release
		return nil, nil
	})
	defer close(release)

	req := NewDataRequest("test", "slow", RequestNotesSearch,
		map[string]interface{}{"query": "x"}, 50*time.Millisecond)

	_, err := m.SendRequest(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestTimeout)

	// The pending entry is gone; a late response is dropped.
	assert.Equal(t, 0, m.PendingCount())
	late := &DataResponse{
		Env:       newEnvelope(CategoryResponse, "slow", "test"),
		RequestID: req.Env.ID,
		Status:    StatusSuccess,
	}
	assert.False(t, m.HandleResponse(late))
}

func TestSendRequest_OutOfBandResolution(t *testing.T) {
	m := NewMediator()

	// Handler defers: returns (nil, nil) and resolves later through
	// HandleResponse, exercising the second resolution path.
	requests := make(chan *DataRequest, 1)
	m.RegisterHandler("async", func(ctx context.Context, msg Message) (Message, error) {
		if req, ok := msg.(*DataRequest); ok {
			requests <- req
		}
		return nil, nil
	})

	go func() {
		req := <-requests
		resp := NewSuccessResponse("async", req, map[string]interface{}{"tick": true})
		m.HandleResponse(resp)
	}()

	req := NewDataRequest("test", "async", RequestWebsiteStatus, nil, time.Second)
	resp, err := m.SendRequest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, true, resp.Data["tick"])
}

func TestHandleResponse_UnknownRequest(t *testing.T) {
	m := NewMediator()
	resp := &DataResponse{
		Env:       newEnvelope(CategoryResponse, "a", "b"),
		RequestID: "never-issued",
		Status:    StatusSuccess,
	}
	assert.False(t, m.HandleResponse(resp))
}

func TestSendRequest_ContextCancellation(t *testing.T) {
	m := NewMediator()
	release := make(chan struct{})
	m.RegisterHandler("slow", func(ctx context.Context, msg Message) (Message, error) {
		<-release
		return nil, nil
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	req := NewDataRequest("test", "slow", RequestNotesSearch,
		map[string]interface{}{"query": "x"}, 5*time.Second)
	_, err := m.SendRequest(ctx, req)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, m.PendingCount())
}

func TestSendNotification_Broadcast(t *testing.T) {
	m := NewMediator()

	var got atomic.Int32
	counting := func(ctx context.Context, msg Message) (Message, error) {
		got.Add(1)
		return nil, nil
	}
	m.RegisterHandler("a", counting)
	m.RegisterHandler("b", counting)
	m.RegisterHandler("c", counting)

	n := NewNotification("test", BroadcastTarget, NotifyProfileUpdated, nil, false)
	delivered := m.SendNotification(context.Background(), n)

	assert.Len(t, delivered, 3)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, delivered)
	assert.Equal(t, int32(3), got.Load())
}

func TestSendNotification_SubscriptionScoping(t *testing.T) {
	m := NewMediator()

	received := make(map[string]int)
	recorder := func(id string) Handler {
		return func(ctx context.Context, msg Message) (Message, error) {
			received[id]++
			return nil, nil
		}
	}
	m.RegisterHandler("subscribed", recorder("subscribed"))
	m.RegisterHandler("bystander", recorder("bystander"))
	m.Subscribe("subscribed", NotifyNoteCreated)

	n := NewNotification("test", "subscribed", NotifyNoteCreated,
		map[string]interface{}{"id": "n1"}, false)
	delivered := m.SendNotification(context.Background(), n)

	assert.Equal(t, []string{"subscribed"}, delivered)
	assert.Equal(t, 1, received["subscribed"])
	assert.Zero(t, received["bystander"])

	// Targeted delivery to a non-subscriber reaches nobody.
	n2 := NewNotification("test", "bystander", NotifyNoteCreated,
		map[string]interface{}{"id": "n2"}, false)
	assert.Empty(t, m.SendNotification(context.Background(), n2))
}

func TestSendNotification_FailingSubscriberIsolated(t *testing.T) {
	m := NewMediator()
	m.RegisterHandler("flaky", func(ctx context.Context, msg Message) (Message, error) {
		return nil, errors.New("handler down")
	})
	m.RegisterHandler("healthy", func(ctx context.Context, msg Message) (Message, error) {
		return nil, nil
	})

	n := NewNotification("test", BroadcastTarget, NotifyExternalStatus,
		map[string]interface{}{"enabled": true}, false)
	delivered := m.SendNotification(context.Background(), n)

	assert.Equal(t, []string{"healthy"}, delivered)
}

func TestSendNotification_NoSubscribers(t *testing.T) {
	m := NewMediator()
	n := NewNotification("test", "nobody", NotifyWebsiteDeployed, nil, false)
	delivered := m.SendNotification(context.Background(), n)
	assert.Empty(t, delivered)
	assert.NotNil(t, delivered)
}

func TestUnregisterHandler_Idempotent(t *testing.T) {
	m := NewMediator()
	m.RegisterHandler("x", echoHandler("x"))
	m.Subscribe("x", NotifyNoteCreated)
	m.Subscribe("x", NotifyNoteDeleted)

	m.UnregisterHandler("x")
	assert.False(t, m.IsSubscribed("x", NotifyNoteCreated))
	assert.False(t, m.IsSubscribed("x", NotifyNoteDeleted))

	// A second unregister is harmless.
	m.UnregisterHandler("x")

	req := NewDataRequest("test", "x", RequestNotesRecent, nil, 0)
	resp, err := m.SendRequest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, ErrCodeContextNotFound, resp.ErrorCode())
}

func TestSubscribe_Idempotent(t *testing.T) {
	m := NewMediator()
	var count atomic.Int32
	m.RegisterHandler("x", func(ctx context.Context, msg Message) (Message, error) {
		count.Add(1)
		return nil, nil
	})
	m.Subscribe("x", NotifyNoteCreated)
	m.Subscribe("x", NotifyNoteCreated)

	n := NewNotification("test", "x", NotifyNoteCreated,
		map[string]interface{}{"id": "n1"}, false)
	delivered := m.SendNotification(context.Background(), n)

	assert.Len(t, delivered, 1)
	assert.Equal(t, int32(1), count.Load())
}

func TestRegisterHandler_LastWriteWins(t *testing.T) {
	m := NewMediator()
	m.RegisterHandler("x", func(ctx context.Context, msg Message) (Message, error) {
		return nil, errors.New("old handler")
	})
	m.RegisterHandler("x", echoHandler("x"))

	req := NewDataRequest("test", "x", RequestNotesRecent, map[string]interface{}{}, 0)
	resp, err := m.SendRequest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, resp.Status)
}

func TestCleanupTimedOutRequests(t *testing.T) {
	m := NewMediator()
	release := make(chan struct{})
	m.RegisterHandler("stuck", func(ctx context.Context, msg Message) (Message, error) {
		<-release
		return nil, nil
	})
	defer close(release)

	req := NewDataRequest("test", "stuck", RequestNotesSearch,
		map[string]interface{}{"query": "x"}, 30*time.Millisecond)

	result := make(chan error, 1)
	go func() {
		_, err := m.SendRequest(context.Background(), req)
		result <- err
	}()

	// Wait for the entry to expire, then sweep. The waiter's own timer
	// may win the race; either way the request settles with a timeout
	// error and the table drains.
	require.Eventually(t, func() bool { return m.PendingCount() <= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	m.CleanupTimedOutRequests()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrRequestTimeout)
	case <-time.After(time.Second):
		t.Fatal("request never settled")
	}
	assert.Equal(t, 0, m.PendingCount())
}
