package events

import (
	"context"

	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/sse"
)

// HubPublisher pushes events to live SSE subscribers of the owning user
type HubPublisher struct {
	hub *sse.Hub
}

func NewHubPublisher(hub *sse.Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, event Event) error {
	p.hub.Publish(event.UserID, sse.Event{
		UserID: event.UserID,
		Event:  string(event.Type),
		Data:   event,
	})
	return nil
}
