package confirmation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/md-rashed-zaman/meetslot/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/meetslot/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

type Store interface {
	Insert(ctx context.Context, n storage.Notification) error
}

// Handler turns booking events into confirmation emails.
type Handler struct {
	sender email.Sender
	store  Store
	logger *slog.Logger
}

func NewHandler(sender email.Sender, store Store, logger *slog.Logger) *Handler {
	return &Handler{sender: sender, store: store, logger: logger}
}

// Handle sends the confirmation for msg. Malformed payloads are dropped; a
// failed send is returned so the consumer can retry.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	ev, err := Decode(msg.Value)
	if err != nil {
		h.logger.Error("dropping booking event", "err", err, "topic", msg.Topic)
		return nil
	}
	body, err := Render(ev)
	if err != nil {
		h.logger.Error("render confirmation failed", "err", err, "event_id", ev.EventID)
		return nil
	}

	to := ev.Recipients()
	n := storage.Notification{EventID: ev.EventID, Recipients: to, Subject: Subject, Status: storage.StatusSent}
	sendErr := h.sender.Send(to, Subject, body)
	if sendErr != nil {
		n.Status = storage.StatusFailed
		n.Error = sendErr.Error()
	}
	if err := h.store.Insert(ctx, n); err != nil {
		h.logger.Error("failed to persist notification", "err", err, "event_id", ev.EventID)
		return errors.Join(sendErr, err)
	}
	if sendErr != nil {
		return sendErr
	}
	h.logger.Info("confirmation sent", "event_id", ev.EventID, "recipients", len(to), "visitor_timezone", ev.VisitorTimezone)
	return nil
}
