package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_FiltersByType(t *testing.T) {
	bus := NewEventBus(4)
	all := bus.Subscribe()
	failed := bus.Subscribe(EventValidationFailed)
	defer all.Close()
	defer failed.Close()

	bus.Publish(DatasetEvent{Type: EventCreated, DatasetID: "a"})
	bus.Publish(DatasetEvent{Type: EventValidationFailed, DatasetID: "a", Errors: []string{"boom"}})

	require.Len(t, all.C(), 2)
	require.Len(t, failed.C(), 1)

	ev := <-failed.C()
	assert.Equal(t, EventValidationFailed, ev.Type)
	assert.Equal(t, []string{"boom"}, ev.Errors)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestEventBus_DropsWhenFull(t *testing.T) {
	bus := NewEventBus(1)
	sub := bus.Subscribe()
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		bus.Publish(DatasetEvent{Type: EventCreated, DatasetID: "1"})
		bus.Publish(DatasetEvent{Type: EventCreated, DatasetID: "2"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	ev := <-sub.C()
	assert.Equal(t, "1", ev.DatasetID)
	assert.Len(t, sub.C(), 0)
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(0)
	sub := bus.Subscribe()
	assert.Equal(t, 1, bus.SubscriberCount())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, bus.SubscriberCount())

	_, ok := <-sub.C()
	assert.False(t, ok)

	// Publishing after close must not panic.
	bus.Publish(DatasetEvent{Type: EventDeleted})
}

func TestDatasetClone(t *testing.T) {
	skill := "pick-place"
	d := &Dataset{
		ID:               "a",
		SkillID:          &skill,
		QualityBreakdown: &QualityBreakdown{Total: 50},
		Manifest:         []byte(`{"fps":30}`),
	}

	c := d.Clone()
	*c.SkillID = "other"
	c.QualityBreakdown.Total = 1
	c.Manifest[0] = '['

	assert.Equal(t, "pick-place", *d.SkillID)
	assert.Equal(t, 50, d.QualityBreakdown.Total)
	assert.Equal(t, byte('{'), d.Manifest[0])
	assert.Nil(t, (*Dataset)(nil).Clone())
}

func TestCanTransition(t *testing.T) {
	statuses := []DatasetStatus{StatusUploading, StatusValidating, StatusReady, StatusFailed}
	allowed := map[[2]DatasetStatus]bool{
		{StatusUploading, StatusValidating}: true,
		{StatusValidating, StatusReady}:     true,
		{StatusValidating, StatusFailed}:    true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			assert.Equal(t, allowed[[2]DatasetStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, DatasetStatus("archived").Valid())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusValidating.IsTerminal())
}

func TestPaginationNormalize(t *testing.T) {
	tests := []struct {
		in   Pagination
		want Pagination
	}{
		{Pagination{}, Pagination{Page: 1, PageSize: DefaultPageSize}},
		{Pagination{Page: 3, PageSize: 20}, Pagination{Page: 3, PageSize: 20}},
		{Pagination{Page: -1, PageSize: 5000}, Pagination{Page: 1, PageSize: MaxPageSize}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.Normalize())
	}
	assert.Equal(t, 40, Pagination{Page: 3, PageSize: 20}.Offset())
}
