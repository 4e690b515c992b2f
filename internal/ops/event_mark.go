package ops

import (
	"strings"

	"github.com/hpungsan/vessel/internal/env"
	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/store"
)

// MarkEventInput contains parameters for the MarkEvent operation.
type MarkEventInput struct {
	CapsuleID string
	Event     string
}

// MarkEventOutput contains the result of the MarkEvent operation.
type MarkEventOutput struct {
	Event string `json:"event"`

	// Fired is false when the event was already recorded.
	Fired bool `json:"fired"`
}

// MarkEvent records that an event has fired for the capsule, revealing
// any event-triggered access wrapping it. Marking is append-only and
// idempotent: events cannot be un-fired.
func MarkEvent(e env.Env, st store.Store, input MarkEventInput) (*MarkEventOutput, error) {
	event := strings.TrimSpace(input.Event)
	if event == "" {
		return nil, errors.NewInvalidArgument("event name must not be empty")
	}

	c, err := loadControlledCapsule(e, st, input.CapsuleID)
	if err != nil {
		return nil, err
	}

	if c.EventFired(event) {
		return &MarkEventOutput{Event: event, Fired: false}, nil
	}

	now := e.Now().Unix()
	c.FiredEvents = append(c.FiredEvents, event)

	// Listing flags derive from access, which just changed shape for
	// any memory gated on this event.
	fired := c.FiredEventSet()
	for _, m := range c.Memories {
		m.RecomputeSummary(now, fired)
	}

	c.RecordActivity(e.Caller(), now)
	c.Touch(now)
	if err := st.UpsertCapsule(c); err != nil {
		return nil, err
	}

	return &MarkEventOutput{Event: event, Fired: true}, nil
}
