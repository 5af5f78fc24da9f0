package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/jonboulle/clockwork"

	"github.com/MarkDM/whisper-aws-serverless/internal/metrics"
	"github.com/MarkDM/whisper-aws-serverless/internal/platform/correlation"
)

const (
	defaultBatchSize   = 10
	defaultWaitTime    = 20 * time.Second
	defaultBackoffBase = 1 * time.Second
	defaultBackoffMax  = 30 * time.Second

	// retryJitterFactor spreads concurrent pollers apart after a shared
	// outage so they do not retry in lockstep.
	retryJitterFactor = 0.25
)

// Message is a single queue message handed to a Handler. The body is the
// raw message payload; handlers decide how to interpret it.
type Message struct {
	MessageID     string
	ReceiptHandle string
	Body          []byte
}

// Handler processes one received message. Returning an error leaves the
// message on the queue for redelivery after its visibility timeout.
type Handler func(ctx context.Context, msg Message) error

// ReceiverAPI is the slice of the SQS client the poller needs.
type ReceiverAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Options tunes a Poller. Zero values fall back to the defaults above.
type Options struct {
	QueueURL    string
	BatchSize   int32
	WaitTime    time.Duration
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// Poller long-polls one SQS queue and hands every received message, in
// batch order, to its handler. Messages are deleted only after the handler
// succeeds, so delivery is at-least-once and handlers must tolerate
// duplicates.
//
// A Poller runs once: after Stop it cannot be restarted.
type Poller struct {
	started uint32
	client  ReceiverAPI
	handler Handler
	opts    Options
	clock   clockwork.Clock

	receive failsafe.Executor[*sqs.ReceiveMessageOutput]
	ctx     context.Context
	cancel  context.CancelFunc
	stopCh  chan chan struct{}
}

// NewPoller creates a poller over the given queue. The handler is invoked
// sequentially; a slow handler delays the rest of its batch.
func NewPoller(client ReceiverAPI, handler Handler, opts Options, clock clockwork.Clock) *Poller {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.WaitTime <= 0 {
		opts.WaitTime = defaultWaitTime
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	if opts.BackoffMax < opts.BackoffBase {
		opts.BackoffMax = defaultBackoffMax
	}

	ctx, cancel := context.WithCancel(context.Background())

	policy := retrypolicy.NewBuilder[*sqs.ReceiveMessageOutput]().
		HandleIf(func(_ *sqs.ReceiveMessageOutput, err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}).
		WithBackoff(opts.BackoffBase, opts.BackoffMax).
		WithJitterFactor(retryJitterFactor).
		WithMaxRetries(-1).
		OnRetry(func(e failsafe.ExecutionEvent[*sqs.ReceiveMessageOutput]) {
			metrics.QueueReceiveRetries.Inc()
			slog.Warn("Retrying queue receive",
				"queue_url", opts.QueueURL,
				"attempt", e.Attempts(),
				"error", e.LastError(),
			)
		}).
		Build()

	return &Poller{
		client:  client,
		handler: handler,
		opts:    opts,
		clock:   clock,
		receive: failsafe.NewExecutor[*sqs.ReceiveMessageOutput](policy).WithContext(ctx),
		ctx:     ctx,
		cancel:  cancel,
		stopCh:  make(chan chan struct{}, 1),
	}
}

// Started reports whether the receive loop is currently running.
func (p *Poller) Started() bool {
	return atomic.LoadUint32(&p.started) != 0
}

// Start begins consuming messages if the poller is not already running or
// stopped.
func (p *Poller) Start() {
	if p.ctx.Err() != nil {
		return
	}
	if atomic.SwapUint32(&p.started, 1) == 1 {
		return
	}

	slog.Info("Queue poller started",
		"queue_url", p.opts.QueueURL,
		"batch_size", p.opts.BatchSize,
		"wait_time", p.opts.WaitTime,
	)
	go p.run()
}

// Stop signals the loop to exit and waits up to wait for it to do so. Any
// backoff sleep is aborted right away; an in-flight long poll completes
// first, and its messages are still dispatched before the loop exits.
func (p *Poller) Stop(wait time.Duration) {
	if !p.Started() {
		return
	}

	p.cancel()

	ch := make(chan struct{})
	p.stopCh <- ch
	select {
	case <-ch:
		slog.Info("Queue poller stopped", "queue_url", p.opts.QueueURL)
	case <-p.clock.After(wait):
		slog.Warn("Queue poller did not stop in time", "queue_url", p.opts.QueueURL, "wait", wait)
	}
}

func (p *Poller) run() {
	defer atomic.StoreUint32(&p.started, 0)

	for {
		select {
		case ch := <-p.stopCh:
			// Flag drops before the ack so a completed Stop observes a
			// stopped poller.
			atomic.StoreUint32(&p.started, 0)
			ch <- struct{}{}
			return
		default:
		}

		ctx := correlation.WithID(context.Background(), correlation.NewID())

		out, err := p.receive.Get(func() (*sqs.ReceiveMessageOutput, error) {
			return p.receiveOnce(ctx)
		})
		if err != nil {
			// Only cancellation from Stop lands here; transient receive
			// errors retry inside the executor.
			continue
		}

		for _, raw := range out.Messages {
			p.dispatch(ctx, raw)
		}
	}
}

func (p *Poller) receiveOnce(ctx context.Context) (*sqs.ReceiveMessageOutput, error) {
	start := p.clock.Now()
	out, err := p.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(p.opts.QueueURL),
		MaxNumberOfMessages: p.opts.BatchSize,
		WaitTimeSeconds:     int32(p.opts.WaitTime / time.Second),
	})
	metrics.QueueReceiveDuration.Observe(p.clock.Since(start).Seconds())

	if err != nil {
		metrics.QueueReceiveErrors.Inc()
		slog.ErrorContext(ctx, "Failed to receive messages", "queue_url", p.opts.QueueURL, "error", err)
		return nil, err
	}
	return out, nil
}

func (p *Poller) dispatch(ctx context.Context, raw types.Message) {
	metrics.QueueMessagesReceived.Inc()

	ctx = correlation.WithID(ctx, correlation.NewID())
	msg := Message{
		MessageID:     aws.ToString(raw.MessageId),
		ReceiptHandle: aws.ToString(raw.ReceiptHandle),
		Body:          []byte(aws.ToString(raw.Body)),
	}

	if err := p.handler(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Message handler failed, leaving message for redelivery",
			"message_id", msg.MessageID,
			"error", err,
		)
		return
	}

	if _, err := p.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.opts.QueueURL),
		ReceiptHandle: raw.ReceiptHandle,
	}); err != nil {
		// Redelivery of an already handled message is acceptable,
		// so a failed delete is logged and never retried.
		metrics.QueueDeleteErrors.Inc()
		slog.ErrorContext(ctx, "Failed to delete message", "message_id", msg.MessageID, "error", err)
		return
	}
	metrics.QueueMessagesDeleted.Inc()
}
