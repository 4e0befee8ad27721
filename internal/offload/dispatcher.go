package offload

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/pkg/errors"
)

// replyTimeout bounds how long a dispatched request waits for a worker's
// reply before the caller gives up.
const replyTimeout = 600 * time.Second

// Dispatcher is the producer side of the offload topology: it publishes raw
// block requests and waits for the corresponding reply, used by an
// alternative collector that distributes persistence over the worker pool
// instead of doing it inline.
type Dispatcher struct {
	ch      *amqp.Channel
	replyQ  amqp.Queue
	replies <-chan amqp.Delivery
}

// NewDispatcher declares an exclusive reply queue and starts consuming it.
func NewDispatcher(ch *amqp.Channel) (*Dispatcher, error) {
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return nil, errors.Wrap(err, "declaring request queue")
	}
	replyQ, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, errors.Wrap(err, "declaring reply queue")
	}
	deliveries, err := ch.Consume(replyQ.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, errors.Wrap(err, "consuming reply queue")
	}
	return &Dispatcher{ch: ch, replyQ: replyQ, replies: deliveries}, nil
}

// Dispatch publishes a raw-block request and blocks until the matching
// reply arrives or replyTimeout elapses.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Reply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Reply{}, errors.Wrap(err, "encoding request")
	}

	correlationID := requestCorrelationID(req)
	err = d.ch.PublishWithContext(ctx, "", QueueName, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: correlationID,
		ReplyTo:       d.replyQ.Name,
		Body:          body,
	})
	if err != nil {
		return Reply{}, errors.Wrap(err, "publishing request")
	}

	timer := time.NewTimer(replyTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Reply{}, ctx.Err()
		case <-timer.C:
			return Reply{}, errors.Errorf("timed out waiting for reply to block %d", req.Height)
		case msg := <-d.replies:
			if msg.CorrelationId != correlationID {
				continue
			}
			var reply Reply
			if err := json.Unmarshal(msg.Body, &reply); err != nil {
				return Reply{}, errors.Wrap(err, "decoding reply")
			}
			return reply, nil
		}
	}
}

func requestCorrelationID(req Request) string {
	return "block-" + strconv.FormatUint(req.Height, 10)
}
