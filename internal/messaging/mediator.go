package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"memora/internal/logging"
)

// =============================================================================
// MEDIATOR
// =============================================================================
//
// The mediator owns three tables: the handler registry, the
// pending-request table, and the subscription table. No other component
// holds a reference to any of them; the methods below are the only way
// in. Every pending request settles exactly once: by a handler
// response, an out-of-band HandleResponse, its timeout, or the sweep.
// The losers of that race find the entry already gone and no-op.

// Handler processes one incoming message for a context. Returning a
// non-nil message resolves the request (or acknowledges the
// notification) directly; returning (nil, nil) for a request leaves it
// pending for a later HandleResponse call.
type Handler func(ctx context.Context, msg Message) (Message, error)

// DefaultRequestTimeout bounds requests that don't carry their own.
const DefaultRequestTimeout = 30 * time.Second

// settlement is what ends a pending request: a response or an error.
type settlement struct {
	resp *DataResponse
	err  error
}

// pendingRequest tracks one in-flight request. Owned exclusively by the
// mediator; created in SendRequest, destroyed by whichever settlement
// path wins.
type pendingRequest struct {
	issuedAt time.Time
	timeout  time.Duration
	done     chan settlement // buffered, capacity 1
}

// Mediator routes requests, responses, and notifications between
// registered contexts.
type Mediator struct {
	mu             sync.RWMutex
	handlers       map[string]Handler
	pending        map[string]*pendingRequest
	subscriptions  map[NotificationType]map[string]struct{}
	defaultTimeout time.Duration
}

// Option customizes a Mediator.
type Option func(*Mediator)

// WithDefaultTimeout overrides the default per-request timeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(m *Mediator) {
		if d > 0 {
			m.defaultTimeout = d
		}
	}
}

// NewMediator creates an empty mediator.
func NewMediator(opts ...Option) *Mediator {
	m := &Mediator{
		handlers:       make(map[string]Handler),
		pending:        make(map[string]*pendingRequest),
		subscriptions:  make(map[NotificationType]map[string]struct{}),
		defaultTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterHandler binds a context identifier to a handler. Re-registering
// the same id silently replaces the prior handler.
func (m *Mediator) RegisterHandler(contextID string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.handlers[contextID]; exists {
		logging.MediatorDebug("replacing handler for context %s", contextID)
	}
	m.handlers[contextID] = handler
	logging.Mediator("registered handler for context %s", contextID)
}

// UnregisterHandler removes a handler and cascades removal from every
// subscription set. Unregistering an unknown context is harmless.
func (m *Mediator) UnregisterHandler(contextID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, contextID)
	for kind, subs := range m.subscriptions {
		delete(subs, contextID)
		if len(subs) == 0 {
			delete(m.subscriptions, kind)
		}
	}
	logging.Mediator("unregistered context %s", contextID)
}

// Subscribe adds contextID to the subscriber set for kind. Idempotent.
func (m *Mediator) Subscribe(contextID string, kind NotificationType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs, ok := m.subscriptions[kind]
	if !ok {
		subs = make(map[string]struct{})
		m.subscriptions[kind] = subs
	}
	subs[contextID] = struct{}{}
}

// Unsubscribe removes contextID from the subscriber set for kind.
func (m *Mediator) Unsubscribe(contextID string, kind NotificationType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if subs, ok := m.subscriptions[kind]; ok {
		delete(subs, contextID)
		if len(subs) == 0 {
			delete(m.subscriptions, kind)
		}
	}
}

// IsSubscribed reports whether contextID subscribes to kind.
func (m *Mediator) IsSubscribed(contextID string, kind NotificationType) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.subscriptions[kind][contextID]
	return ok
}

// SendRequest routes req to its target handler and waits for the
// response, the request timeout, or ctx cancellation, whichever comes
// first. Routing and handler failures come back as error-shaped
// responses; only timeout and cancellation return a Go error, because
// in those cases there is no response to return.
func (m *Mediator) SendRequest(ctx context.Context, req *DataRequest) (*DataResponse, error) {
	m.mu.RLock()
	handler, ok := m.handlers[req.Env.TargetContext]
	m.mu.RUnlock()

	if !ok {
		// Fail fast: no pending entry, no timer.
		logging.Mediator("no handler for context %s (request %s)", req.Env.TargetContext, req.Env.ID)
		return NewErrorResponse("mediator", req, ErrCodeContextNotFound,
			fmt.Sprintf("no handler registered for context %q", req.Env.TargetContext), ""), nil
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = m.defaultTimeout
	}

	entry := &pendingRequest{
		issuedAt: time.Now(),
		timeout:  timeout,
		done:     make(chan settlement, 1),
	}
	m.mu.Lock()
	m.pending[req.Env.ID] = entry
	m.mu.Unlock()

	logging.MediatorDebug("request %s (%s) -> %s, timeout=%v",
		req.Env.ID, req.DataType, req.Env.TargetContext, timeout)

	go m.invokeHandler(ctx, handler, req)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s := <-entry.done:
		return s.resp, s.err
	case <-timer.C:
		s, gone := m.settle(req.Env.ID, settlement{err: fmt.Errorf("request %s to %s: %w after %v",
			req.Env.ID, req.Env.TargetContext, ErrRequestTimeout, timeout)})
		if gone {
			// Handler settled between timer fire and table lookup; its
			// settlement is already buffered on done.
			s = <-entry.done
		} else {
			logging.Mediator("request %s to %s timed out after %v", req.Env.ID, req.Env.TargetContext, timeout)
		}
		return s.resp, s.err
	case <-ctx.Done():
		s, gone := m.settle(req.Env.ID, settlement{err: ctx.Err()})
		if gone {
			s = <-entry.done
		}
		return s.resp, s.err
	}
}

// invokeHandler runs the target handler and settles the pending entry
// with its outcome. Panics and errors become HANDLER_ERROR responses; a
// (nil, nil) return leaves the entry pending for HandleResponse.
func (m *Mediator) invokeHandler(ctx context.Context, handler Handler, req *DataRequest) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryMediator).Error("handler for %s panicked: %v", req.Env.TargetContext, r)
			m.settle(req.Env.ID, settlement{resp: NewErrorResponse(req.Env.TargetContext, req,
				ErrCodeHandlerError, fmt.Sprintf("handler panicked: %v", r), "")})
		}
	}()

	result, err := handler(ctx, req)
	switch {
	case err != nil:
		m.settle(req.Env.ID, settlement{resp: NewErrorResponse(req.Env.TargetContext, req,
			ErrCodeHandlerError, err.Error(), "")})
	case result == nil:
		// Handler will resolve asynchronously via HandleResponse.
		logging.MediatorDebug("handler for %s deferred request %s", req.Env.TargetContext, req.Env.ID)
	default:
		resp, ok := result.(*DataResponse)
		if !ok {
			m.settle(req.Env.ID, settlement{resp: NewErrorResponse(req.Env.TargetContext, req,
				ErrCodeHandlerError, fmt.Sprintf("handler returned %T, expected *DataResponse", result), "")})
			return
		}
		m.settle(req.Env.ID, settlement{resp: resp})
	}
}

// settle removes the pending entry for requestID and delivers s to the
// waiting SendRequest. Returns the delivered settlement and false, or
// (zero, true) when the entry was already gone, meaning the other side
// of the race won and s was discarded.
func (m *Mediator) settle(requestID string, s settlement) (settlement, bool) {
	m.mu.Lock()
	entry, ok := m.pending[requestID]
	if !ok {
		m.mu.Unlock()
		return settlement{}, true
	}
	delete(m.pending, requestID)
	m.mu.Unlock()

	entry.done <- s
	return s, false
}

// HandleResponse resolves a pending request out-of-band. Returns false
// when no matching entry exists; duplicate and late responses are
// logged and dropped, not errors.
func (m *Mediator) HandleResponse(resp *DataResponse) bool {
	if _, gone := m.settle(resp.RequestID, settlement{resp: resp}); gone {
		logging.MediatorDebug("no pending request for response %s (request %s)", resp.Env.ID, resp.RequestID)
		return false
	}
	logging.MediatorDebug("resolved request %s via out-of-band response", resp.RequestID)
	return true
}

// PendingCount returns the number of in-flight requests.
func (m *Mediator) PendingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pending)
}

// SendNotification fans n out to its delivery set: every registered
// context for a broadcast target, otherwise only the declared target if
// it subscribes to n's kind. Delivery is sequential; one failing
// subscriber cannot block the rest. Returns the ids of contexts that
// received the notification, an empty list when nobody is subscribed.
func (m *Mediator) SendNotification(ctx context.Context, n *Notification) []string {
	m.mu.RLock()
	targets := make(map[string]Handler)
	if n.Env.TargetContext == BroadcastTarget {
		for id, h := range m.handlers {
			targets[id] = h
		}
	} else {
		if _, subscribed := m.subscriptions[n.NotificationType][n.Env.TargetContext]; subscribed {
			if h, ok := m.handlers[n.Env.TargetContext]; ok {
				targets[n.Env.TargetContext] = h
			}
		}
	}
	m.mu.RUnlock()

	delivered := make([]string, 0, len(targets))
	for id, handler := range targets {
		if err := m.deliverNotification(ctx, id, handler, n); err != nil {
			logging.Get(logging.CategoryMediator).Warn("notification %s (%s) failed for %s: %v",
				n.Env.ID, n.NotificationType, id, err)
			continue
		}
		delivered = append(delivered, id)
	}

	logging.MediatorDebug("notification %s (%s) delivered to %d context(s)",
		n.Env.ID, n.NotificationType, len(delivered))
	return delivered
}

// deliverNotification invokes one subscriber, converting panics into
// errors so fan-out continues.
func (m *Mediator) deliverNotification(ctx context.Context, contextID string, handler Handler, n *Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %s panicked: %v", contextID, r)
		}
	}()

	result, err := handler(ctx, n)
	if err != nil {
		return err
	}
	if ack, ok := result.(*Acknowledgment); ok && ack.Status == AckRejected {
		return fmt.Errorf("context %s rejected notification", contextID)
	}
	return nil
}

// CleanupTimedOutRequests reaps pending entries whose deadline has
// passed, unblocking their waiters with a timeout error. The
// per-request timer normally wins this race; the sweep catches any
// entry that dodged it. Returns the number of entries reaped.
func (m *Mediator) CleanupTimedOutRequests() int {
	now := time.Now()

	m.mu.Lock()
	var expired []*pendingRequest
	var ids []string
	for id, entry := range m.pending {
		if now.Sub(entry.issuedAt) > entry.timeout {
			expired = append(expired, entry)
			ids = append(ids, id)
			delete(m.pending, id)
		}
	}
	m.mu.Unlock()

	for i, entry := range expired {
		entry.done <- settlement{err: fmt.Errorf("request %s: %w (reaped by sweep)", ids[i], ErrRequestTimeout)}
	}
	if len(expired) > 0 {
		logging.Mediator("sweep reaped %d timed-out request(s)", len(expired))
	}
	return len(expired)
}
