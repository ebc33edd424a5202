package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/meetslot/libs/kafkax"
	"github.com/md-rashed-zaman/meetslot/services/notification-service/internal/inbox"
	"github.com/segmentio/kafka-go"
)

func newTestConsumer(in Inbox, attempts int, h Handler) *Consumer {
	return &Consumer{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		inbox:    in,
		handler:  h,
		attempts: attempts,
		backoff:  time.Millisecond,
	}
}

func message(id string) kafka.Message {
	return kafka.Message{
		Topic:   "booking.meeting.booked.v1",
		Headers: kafkax.MetaHeaders(kafkax.EventMeta{EventID: id, EventType: "booking.meeting.booked.v1"}),
	}
}

func TestProcess_DuplicateIgnored(t *testing.T) {
	calls := 0
	c := newTestConsumer(inbox.NewMemory(), 1, func(context.Context, kafka.Message) error {
		calls++
		return nil
	})
	c.process(context.Background(), message("e1"))
	c.process(context.Background(), message("e1"))
	c.process(context.Background(), message("e2"))
	if calls != 2 {
		t.Fatalf("expected 2 handler calls, got %d", calls)
	}
}

func TestProcess_RetriesThenForgets(t *testing.T) {
	calls := 0
	in := inbox.NewMemory()
	c := newTestConsumer(in, 3, func(context.Context, kafka.Message) error {
		calls++
		return errors.New("smtp down")
	})
	c.process(context.Background(), message("e1"))
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	// Forgotten events are handled again on redelivery.
	if ok, _ := in.Record(context.Background(), "e1", "x"); !ok {
		t.Fatalf("expected failed event to be forgotten")
	}
}

func TestProcess_RetrySucceeds(t *testing.T) {
	calls := 0
	in := inbox.NewMemory()
	c := newTestConsumer(in, 3, func(context.Context, kafka.Message) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	c.process(context.Background(), message("e1"))
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
	if ok, _ := in.Record(context.Background(), "e1", "x"); ok {
		t.Fatalf("expected handled event to stay recorded")
	}
}
