package outbox

import (
	"context"
	"encoding/json"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/booking"
)

// BookingSink records confirmed bookings in the outbox for the notification service.
type BookingSink struct {
	repo *Repository
}

func NewBookingSink(repo *Repository) *BookingSink {
	return &BookingSink{repo: repo}
}

func (s *BookingSink) MeetingBooked(ctx context.Context, ev booking.MeetingBooked) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.repo.Insert(ctx, nil, Event{
		AggregateType: "calendar_event",
		AggregateID:   ev.EventID,
		EventType:     TopicMeetingBooked,
		Payload:       payload,
	})
}
