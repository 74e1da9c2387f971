// Package events carries attendance state changes from the API to the
// background worker and to live SSE subscribers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/timeutil"
	"github.com/google/uuid"
)

type Type string

const (
	TypeCheckedIn  Type = "attendance.checked_in"
	TypeCheckedOut Type = "attendance.checked_out"
)

// Event is the JSON payload placed on the queue
type Event struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	RecordID    string    `json:"record_id"`
	UserID      string    `json:"user_id"`
	Date        string    `json:"date"`
	HoursWorked *float64  `json:"hours_worked,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

var ErrQueueClosed = errors.New("event queue closed")

// NewCheckedIn builds the event emitted after a committed check-in
func NewCheckedIn(att attendance.Attendance) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       TypeCheckedIn,
		RecordID:   att.ID,
		UserID:     att.UserID,
		Date:       timeutil.FormatDate(att.Date),
		OccurredAt: att.CheckInTime,
	}
}

// NewCheckedOut builds the event emitted after a committed check-out
func NewCheckedOut(att attendance.Attendance) Event {
	ev := Event{
		ID:          uuid.NewString(),
		Type:        TypeCheckedOut,
		RecordID:    att.ID,
		UserID:      att.UserID,
		Date:        timeutil.FormatDate(att.Date),
		HoursWorked: att.WorkedHours(),
		OccurredAt:  att.UpdatedAt,
	}
	if att.CheckOutTime != nil {
		ev.OccurredAt = *att.CheckOutTime
	}
	return ev
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func Unmarshal(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	if e.Type == "" || e.RecordID == "" {
		return Event{}, errors.New("event is missing type or record_id")
	}
	return e, nil
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Message is a delivered event. Ack removes it from queues that redeliver
// unacknowledged messages and is a no-op elsewhere.
type Message struct {
	Event Event
	Ack   func(ctx context.Context) error
}

type Consumer interface {
	Consume(ctx context.Context) (<-chan Message, error)
}

func noAck(context.Context) error { return nil }

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// MultiPublisher publishes to every target and joins their errors
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
