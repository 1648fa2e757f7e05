package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	wrap "github.com/Temutjin2k/trip-dispatch/pkg/logger/wrapper"
	"github.com/Temutjin2k/trip-dispatch/pkg/metrics"
	"github.com/Temutjin2k/trip-dispatch/pkg/rabbit"
)

const tripExchange = "trip_topic"

// Notifier publishes trip events for downstream consumers (driver apps,
// rider notifications, analytics). Publishing is fire-and-forget from the
// caller's point of view: failures are returned but never block trip state.
type Notifier struct {
	client *rabbit.RabbitMQ
}

func NewNotifier(client *rabbit.RabbitMQ) *Notifier {
	return &Notifier{
		client: client,
	}
}

// PublishTripRequested announces a new pending trip.
func (n *Notifier) PublishTripRequested(ctx context.Context, msg models.TripRequestedMessage) error {
	const op = "Notifier.PublishTripRequested"

	key := fmt.Sprintf("trip.requested.%s", msg.VehicleType)
	if err := n.publish(ctx, key, msg); err != nil {
		ctx = wrap.WithAction(ctx, "publish_trip_requested")
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	return nil
}

// PublishTripStatus announces a trip status transition.
func (n *Notifier) PublishTripStatus(ctx context.Context, msg models.TripStatusMessage) error {
	const op = "Notifier.PublishTripStatus"

	key := fmt.Sprintf("trip.status.%s", msg.TripID)
	if err := n.publish(ctx, key, msg); err != nil {
		ctx = wrap.WithAction(ctx, "publish_trip_status")
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	return nil
}

func (n *Notifier) publish(ctx context.Context, key string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := n.client.EnsureConnection(ctx); err != nil {
		return fmt.Errorf("failed to ensure connection: %w", err)
	}

	err = n.client.Channel.PublishWithContext(
		ctx,
		tripExchange, // exchange
		key,          // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
	metrics.RecordRabbitMQPublish("dispatch", tripExchange, err)
	if err != nil {
		return fmt.Errorf("failed to publish with context: %w", err)
	}

	return nil
}
