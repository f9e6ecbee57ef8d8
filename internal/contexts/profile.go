package contexts

import (
	"context"
	"fmt"

	"memora/internal/logging"
	"memora/internal/messaging"
	"memora/internal/profile"
)

// =============================================================================
// PROFILE CONTEXT
// =============================================================================

// ProfileReader is the slice of the profile store this context needs.
type ProfileReader interface {
	Get() *profile.Profile
	Reload() error
}

// ProfileContext serves profile-data requests and reloads the profile
// when a profile-updated notification arrives.
type ProfileContext struct {
	store ProfileReader
}

// NewProfileContext builds the profile context.
func NewProfileContext(store ProfileReader) *ProfileContext {
	return &ProfileContext{store: store}
}

// Handler returns the mediator handler for this context.
func (c *ProfileContext) Handler() messaging.Handler {
	return guard(ProfileContextID, c.handle)
}

func (c *ProfileContext) handle(ctx context.Context, msg messaging.Message) (messaging.Message, error) {
	switch m := msg.(type) {
	case *messaging.DataRequest:
		return c.handleRequest(m)
	case *messaging.Notification:
		return c.handleNotification(m), nil
	default:
		return nil, fmt.Errorf("profile context cannot handle %T", msg)
	}
}

func (c *ProfileContext) handleRequest(req *messaging.DataRequest) (messaging.Message, error) {
	if resp := validate(ProfileContextID, req); resp != nil {
		return resp, nil
	}

	switch req.DataType {
	case messaging.RequestProfileData:
		p := c.store.Get()
		return messaging.NewSuccessResponse(ProfileContextID, req, map[string]interface{}{
			"name":      p.Name,
			"headline":  p.Headline,
			"summary":   p.Summary(),
			"text":      p.Text(),
			"interests": p.Interests,
		}), nil
	default:
		return unsupported(ProfileContextID, req), nil
	}
}

func (c *ProfileContext) handleNotification(n *messaging.Notification) messaging.Message {
	if n.NotificationType == messaging.NotifyProfileUpdated {
		if err := c.store.Reload(); err != nil {
			logging.Profile("Profile reload failed: %v", err)
			return messaging.NewAcknowledgment(ProfileContextID, n, messaging.AckRejected)
		}
	}
	return messaging.NewAcknowledgment(ProfileContextID, n, messaging.AckProcessed)
}
