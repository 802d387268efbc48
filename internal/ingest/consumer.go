package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/IBM/sarama"

	"waregate/internal/config"
	"waregate/pkg/types"
)

// Controller lifecycle errors.
var (
	ErrAlreadyRunning = errors.New("ingestion controller already running")
	ErrNotRunning     = errors.New("ingestion controller not running")
)

// State of the ingestion controller. Transitions are strictly
// Stopped → Starting → Running → Stopping → Stopped.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Controller subscribes a consumer group to the fixed topic set and runs the
// at-least-once per-partition consume loop. Messages within a partition are
// processed strictly in delivery order; a bad message or failed handler is
// logged, counted, and skipped so one message can never block a partition.
type Controller struct {
	cfg        *config.KafkaConfig
	dispatcher *Dispatcher

	group  sarama.ConsumerGroup
	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}

	consumed        atomic.Int64
	dropped         atomic.Int64
	handlerFailures atomic.Int64
}

// NewController builds an ingestion controller. The consumer group is not
// created until Start.
func NewController(cfg *config.KafkaConfig, dispatcher *Dispatcher) *Controller {
	return &Controller{
		cfg:        cfg,
		dispatcher: dispatcher,
	}
}

// Start connects to the log and begins consuming. Allowed only from
// Stopped; a connection failure rolls the state back so Start can be
// retried by a supervisor restart.
func (c *Controller) Start(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrAlreadyRunning
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = c.cfg.ClientID
	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, saramaConfig)
	if err != nil {
		c.state.Store(int32(StateStopped))
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.group = group
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.consumeLoop(runCtx)
	go c.errorLoop()

	c.state.Store(int32(StateRunning))
	log.Printf("Ingestion controller started: group=%s topics=%v", c.cfg.GroupID, c.cfg.Topics)
	return nil
}

// Stop disconnects cleanly. Allowed only from Running. Offsets for handled
// messages are committed before the group closes, so shutdown never
// acknowledges messages whose broadcasts were not attempted.
func (c *Controller) Stop() error {
	if !c.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrNotRunning
	}

	c.cancel()
	err := c.group.Close()
	<-c.done

	c.state.Store(int32(StateStopped))
	log.Printf("Ingestion controller stopped: group=%s", c.cfg.GroupID)
	if err != nil {
		return fmt.Errorf("failed to close consumer group: %w", err)
	}
	return nil
}

// CurrentState returns the controller's lifecycle state.
func (c *Controller) CurrentState() State {
	return State(c.state.Load())
}

// Stats reports consume counters for the operator endpoint.
func (c *Controller) Stats() map[string]interface{} {
	return map[string]interface{}{
		"state":            c.CurrentState().String(),
		"messages_handled": c.consumed.Load(),
		"messages_dropped": c.dropped.Load(),
		"handler_failures": c.handlerFailures.Load(),
	}
}

// consumeLoop re-enters Consume across rebalances until the context is
// cancelled or the group is closed.
func (c *Controller) consumeLoop(ctx context.Context) {
	defer close(c.done)

	for {
		if err := c.group.Consume(ctx, c.cfg.Topics, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			log.Printf("Consumer group error: %v", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// errorLoop drains the group's async error channel.
func (c *Controller) errorLoop() {
	for err := range c.group.Errors() {
		log.Printf("Kafka consumer error: %v", err)
	}
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *Controller) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *Controller) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes one partition's messages in order. Every message is
// marked regardless of handler outcome: there is no per-message retry and no
// dead letter, and correctness self-heals through the cache TTL and client
// re-join flow. Redelivery happens only across consumer restarts.
func (c *Controller) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		c.handleMessage(session.Context(), message)
		session.MarkMessage(message, "")
	}
	return nil
}

// handleMessage parses and dispatches one log message, isolating every
// failure to that message alone.
func (c *Controller) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) {
	event, err := types.ParseDomainEvent(message.Value)
	if err != nil {
		c.dropped.Add(1)
		logDropped(message.Topic, message.Partition, message.Offset, err)
		return
	}

	if err := c.dispatcher.Dispatch(ctx, event); err != nil {
		if errors.Is(err, types.ErrUnknownEventType) {
			c.dropped.Add(1)
		} else {
			c.handlerFailures.Add(1)
		}
		logDropped(message.Topic, message.Partition, message.Offset, err)
		return
	}

	c.consumed.Add(1)
}
