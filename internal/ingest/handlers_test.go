package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waregate/pkg/types"
)

// mockNotifier records every broadcast call in order.
type mockNotifier struct {
	mu               sync.Mutex
	inventoryUpdates []*types.DomainEvent
	statusChanges    []*types.DomainEvent
	healthAlerts     []*types.DomainEvent
	systemAlerts     []*types.DomainEvent
	auditLogs        []*types.DomainEvent
	shelfMessages    []types.ShelfMessagePayload
	shelfMessageIDs  []string
	statusPushes     []string
}

func (m *mockNotifier) BroadcastInventoryUpdate(ctx context.Context, event *types.DomainEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *event
	m.inventoryUpdates = append(m.inventoryUpdates, &copied)
}

func (m *mockNotifier) BroadcastShelfStatusChange(ctx context.Context, event *types.DomainEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusChanges = append(m.statusChanges, event)
}

func (m *mockNotifier) BroadcastHealthAlert(ctx context.Context, event *types.DomainEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthAlerts = append(m.healthAlerts, event)
}

func (m *mockNotifier) BroadcastSystemAlert(ctx context.Context, event *types.DomainEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.systemAlerts = append(m.systemAlerts, event)
}

func (m *mockNotifier) BroadcastAuditLog(ctx context.Context, event *types.DomainEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditLogs = append(m.auditLogs, event)
}

func (m *mockNotifier) BroadcastToShelf(ctx context.Context, shelfID string, message types.ShelfMessagePayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shelfMessages = append(m.shelfMessages, message)
	m.shelfMessageIDs = append(m.shelfMessageIDs, shelfID)
}

func (m *mockNotifier) PushShelfStatus(ctx context.Context, shelfID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusPushes = append(m.statusPushes, shelfID)
}

func (m *mockNotifier) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inventoryUpdates) + len(m.statusChanges) + len(m.healthAlerts) +
		len(m.systemAlerts) + len(m.auditLogs) + len(m.shelfMessages) + len(m.statusPushes)
}

func TestDispatchUnknownEventType(t *testing.T) {
	notifier := &mockNotifier{}
	dispatcher := NewDispatcher(notifier)

	err := dispatcher.Dispatch(context.Background(), &types.DomainEvent{EventType: "order.created"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnknownEventType)
	assert.Equal(t, 0, notifier.totalCalls())
}

func TestDispatchMaterialPlaced(t *testing.T) {
	notifier := &mockNotifier{}
	dispatcher := NewDispatcher(notifier)

	event := &types.DomainEvent{
		EventType:  types.EventMaterialPlaced,
		ShelfID:    "A1",
		SlotID:     "s1",
		MaterialID: "mat-42",
	}
	require.NoError(t, dispatcher.Dispatch(context.Background(), event))

	require.Len(t, notifier.inventoryUpdates, 1)
	assert.Equal(t, types.EventMaterialPlaced, notifier.inventoryUpdates[0].EventType)
}

func TestDispatchMaterialMovedFansOut(t *testing.T) {
	notifier := &mockNotifier{}
	dispatcher := NewDispatcher(notifier)

	event := &types.DomainEvent{
		EventType:  types.EventMaterialMoved,
		ShelfID:    "A1",
		SlotID:     "s2",
		FromSlotID: "s1",
		MaterialID: "mat-42",
	}
	require.NoError(t, dispatcher.Dispatch(context.Background(), event))

	// A move renders as removal from the source slot, then placement into the
	// destination.
	require.Len(t, notifier.inventoryUpdates, 2)
	removed := notifier.inventoryUpdates[0]
	assert.Equal(t, types.EventMaterialRemoved, removed.EventType)
	assert.Equal(t, "s1", removed.SlotID)
	placed := notifier.inventoryUpdates[1]
	assert.Equal(t, types.EventMaterialPlaced, placed.EventType)
	assert.Equal(t, "s2", placed.SlotID)

	// The original event is untouched.
	assert.Equal(t, types.EventMaterialMoved, event.EventType)
}

func TestDispatchShelfEvents(t *testing.T) {
	notifier := &mockNotifier{}
	dispatcher := NewDispatcher(notifier)
	ctx := context.Background()

	require.NoError(t, dispatcher.Dispatch(ctx, &types.DomainEvent{
		EventType: types.EventShelfStatusChanged,
		ShelfID:   "A1",
		OldStatus: "active",
		NewStatus: "maintenance",
	}))
	require.NoError(t, dispatcher.Dispatch(ctx, &types.DomainEvent{
		EventType: types.EventShelfHealthAlert,
		ShelfID:   "A1",
		Severity:  types.SeverityHigh,
	}))

	assert.Len(t, notifier.statusChanges, 1)
	assert.Len(t, notifier.healthAlerts, 1)
}

func TestDispatchSystemAlert(t *testing.T) {
	notifier := &mockNotifier{}
	dispatcher := NewDispatcher(notifier)

	require.NoError(t, dispatcher.Dispatch(context.Background(), &types.DomainEvent{
		EventType: types.EventSystemAlert,
		AlertType: "capacity",
		Severity:  types.SeverityHigh,
	}))

	assert.Len(t, notifier.systemAlerts, 1)
	assert.Empty(t, notifier.shelfMessages)
}

func TestDispatchCriticalSystemAlertRelaysToShelf(t *testing.T) {
	notifier := &mockNotifier{}
	dispatcher := NewDispatcher(notifier)

	require.NoError(t, dispatcher.Dispatch(context.Background(), &types.DomainEvent{
		EventType: types.EventSystemAlert,
		AlertType: "outage",
		Severity:  types.SeverityCritical,
		Message:   "conveyor halted",
		Metadata:  map[string]interface{}{"shelf_id": "A1"},
	}))

	assert.Len(t, notifier.systemAlerts, 1)
	require.Len(t, notifier.shelfMessages, 1)
	assert.Equal(t, []string{"A1"}, notifier.shelfMessageIDs)
	assert.Equal(t, "critical_alert", notifier.shelfMessages[0].Type)
	assert.Equal(t, "conveyor halted", notifier.shelfMessages[0].Message)
}

func TestDispatchCriticalAlertWithoutShelfSkipsRelay(t *testing.T) {
	notifier := &mockNotifier{}
	dispatcher := NewDispatcher(notifier)

	require.NoError(t, dispatcher.Dispatch(context.Background(), &types.DomainEvent{
		EventType: types.EventSystemAlert,
		Severity:  types.SeverityCritical,
	}))

	assert.Len(t, notifier.systemAlerts, 1)
	assert.Empty(t, notifier.shelfMessages)
}

func TestDispatchAuditLog(t *testing.T) {
	notifier := &mockNotifier{}
	dispatcher := NewDispatcher(notifier)

	require.NoError(t, dispatcher.Dispatch(context.Background(), &types.DomainEvent{
		EventType:  types.EventAuditLog,
		OperatorID: "op-7",
	}))

	assert.Len(t, notifier.auditLogs, 1)
}

func TestDispatchPhysicalRequested(t *testing.T) {
	notifier := &mockNotifier{}
	dispatcher := NewDispatcher(notifier)

	require.NoError(t, dispatcher.Dispatch(context.Background(), &types.DomainEvent{
		EventType:   types.EventPhysicalPlacementRequested,
		ShelfID:     "A1",
		SlotID:      "s1",
		MaterialID:  "mat-42",
		OperationID: "phys-1",
		Timestamp:   time.Now(),
	}))

	require.Len(t, notifier.shelfMessages, 1)
	msg := notifier.shelfMessages[0]
	assert.Equal(t, "physical_instruction", msg.Type)
	assert.Equal(t, "phys-1", msg.OperationID)
	assert.Contains(t, msg.Message, "mat-42")
	assert.Contains(t, msg.Message, "s1")

	// A request is not an outcome; the shelf snapshot is not refreshed.
	assert.Empty(t, notifier.statusPushes)
}

func TestDispatchPhysicalOutcomePushesStatus(t *testing.T) {
	notifier := &mockNotifier{}
	dispatcher := NewDispatcher(notifier)
	ctx := context.Background()

	outcomes := []string{
		types.EventPhysicalPlacementConfirmed,
		types.EventPhysicalPlacementFailed,
		types.EventPhysicalPlacementUnplanned,
		types.EventPhysicalRemovalConfirmed,
		types.EventPhysicalRemovalFailed,
		types.EventPhysicalRemovalUnplanned,
	}
	for _, eventType := range outcomes {
		require.NoError(t, dispatcher.Dispatch(ctx, &types.DomainEvent{
			EventType:  eventType,
			ShelfID:    "A1",
			SlotID:     "s1",
			MaterialID: "mat-42",
		}), "event type %s", eventType)
	}

	assert.Len(t, notifier.shelfMessages, len(outcomes))
	for _, msg := range notifier.shelfMessages {
		assert.Equal(t, "physical_outcome", msg.Type)
	}
	assert.Len(t, notifier.statusPushes, len(outcomes))
}
