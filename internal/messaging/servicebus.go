package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aah91/bbq-buddy/config"
	"github.com/aah91/bbq-buddy/internal/models"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
)

// StatusNotifier publishes event status changes so downstream systems
// (invoicing, bookkeeping) can react without polling.
type StatusNotifier interface {
	NotifyStatusChange(ctx context.Context, event *models.Event, from, to models.EventStatus) error
	Close() error
}

// statusChangeMessage is the wire format of a status-change notification.
type statusChangeMessage struct {
	EventID    string    `json:"event_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	EventAt    time.Time `json:"event_at"`
	DeadlineAt time.Time `json:"deadline_at"`
	OccurredAt time.Time `json:"occurred_at"`
}

// serviceBusNotifier implements StatusNotifier on Azure Service Bus
type serviceBusNotifier struct {
	client *azservicebus.Client
	sender *azservicebus.Sender
}

// noopNotifier is used when no connection string is configured.
type noopNotifier struct{}

func (noopNotifier) NotifyStatusChange(context.Context, *models.Event, models.EventStatus, models.EventStatus) error {
	return nil
}

func (noopNotifier) Close() error { return nil }

// NewStatusNotifier creates a Service Bus backed notifier, or a no-op notifier
// when the connection string is empty.
func NewStatusNotifier(cfg config.ServiceBusConfig) (StatusNotifier, error) {
	if cfg.ConnectionString == "" {
		return noopNotifier{}, nil
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	sender, err := client.NewSender(cfg.TopicName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &serviceBusNotifier{client: client, sender: sender}, nil
}

// NotifyStatusChange publishes a status-change message
func (n *serviceBusNotifier) NotifyStatusChange(ctx context.Context, event *models.Event, from, to models.EventStatus) error {
	body, err := json.Marshal(statusChangeMessage{
		EventID:    event.ID.String(),
		FromStatus: string(from),
		ToStatus:   string(to),
		EventAt:    event.EventAt,
		DeadlineAt: event.DeadlineAt,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal status-change message")
	}

	msg := &azservicebus.Message{
		Body: body,
		ApplicationProperties: map[string]interface{}{
			"source": "bbq-buddy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}

	return errors.Wrap(n.sender.SendMessage(ctx, msg, nil), "failed to send status-change message")
}

// Close closes the Service Bus client
func (n *serviceBusNotifier) Close() error {
	if n.sender != nil {
		if err := n.sender.Close(context.Background()); err != nil {
			return err
		}
	}
	if n.client != nil {
		return n.client.Close(context.Background())
	}
	return nil
}
