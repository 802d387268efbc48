package ingest

import (
	"context"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waregate/internal/config"
	"waregate/pkg/types"
)

func newTestController() (*Controller, *mockNotifier) {
	notifier := &mockNotifier{}
	cfg := &config.KafkaConfig{
		Brokers:  []string{"localhost:9092"},
		GroupID:  "waregate-test",
		ClientID: "waregate-test",
		Topics:   []string{"inventory_events"},
	}
	return NewController(cfg, NewDispatcher(notifier)), notifier
}

func TestControllerInitialState(t *testing.T) {
	controller, _ := newTestController()
	assert.Equal(t, StateStopped, controller.CurrentState())
}

func TestStopWithoutStart(t *testing.T) {
	controller, _ := newTestController()
	assert.ErrorIs(t, controller.Stop(), ErrNotRunning)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopping", StateStopping.String())
	assert.Equal(t, "unknown", State(99).String())
}

func message(topic string, value string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Topic:     topic,
		Partition: 0,
		Offset:    1,
		Value:     []byte(value),
	}
}

func TestHandleMessageDispatches(t *testing.T) {
	controller, notifier := newTestController()

	controller.handleMessage(context.Background(), message("inventory_events", `{
		"event_type": "material.placed",
		"shelf_id": "A1",
		"slot_id": "s1",
		"material_id": "mat-42"
	}`))

	require.Len(t, notifier.inventoryUpdates, 1)
	stats := controller.Stats()
	assert.Equal(t, int64(1), stats["messages_handled"])
	assert.Equal(t, int64(0), stats["messages_dropped"])
}

func TestHandleMessageDispatchesByEventTypeNotTopic(t *testing.T) {
	controller, notifier := newTestController()

	// A system alert arriving on the inventory topic is still handled as a
	// system alert.
	controller.handleMessage(context.Background(), message("inventory_events", `{
		"event_type": "system.alert",
		"alert_type": "capacity",
		"severity": "high"
	}`))

	assert.Len(t, notifier.systemAlerts, 1)
	assert.Empty(t, notifier.inventoryUpdates)
}

func TestHandleMessageDropsMalformedPayload(t *testing.T) {
	controller, notifier := newTestController()

	controller.handleMessage(context.Background(), message("inventory_events", "not json"))
	controller.handleMessage(context.Background(), message("inventory_events", `{"shelf_id": "A1"}`))

	assert.Equal(t, 0, notifier.totalCalls())
	stats := controller.Stats()
	assert.Equal(t, int64(0), stats["messages_handled"])
	assert.Equal(t, int64(2), stats["messages_dropped"])
}

func TestHandleMessageDropsUnknownEventType(t *testing.T) {
	controller, notifier := newTestController()

	controller.handleMessage(context.Background(), message("inventory_events", `{"event_type": "order.created"}`))

	assert.Equal(t, 0, notifier.totalCalls())
	assert.Equal(t, int64(1), controller.Stats()["messages_dropped"])
}

func TestHandleMessageIsolatesFailures(t *testing.T) {
	controller, notifier := newTestController()
	ctx := context.Background()

	// Bad, then good: the bad message never blocks the partition.
	controller.handleMessage(ctx, message("inventory_events", "garbage"))
	controller.handleMessage(ctx, message("inventory_events", `{
		"event_type": "material.removed",
		"shelf_id": "A1",
		"slot_id": "s1",
		"material_id": "mat-42"
	}`))

	require.Len(t, notifier.inventoryUpdates, 1)
	assert.Equal(t, types.EventMaterialRemoved, notifier.inventoryUpdates[0].EventType)
}
