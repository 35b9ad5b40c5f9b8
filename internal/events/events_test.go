package events

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBus_DeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	a, unsubA := bus.Subscribe()
	defer unsubA()
	b, unsubB := bus.Subscribe()
	defer unsubB()
	assert.Equal(t, 2, bus.Subscribers())

	bus.Emit(RunStarted, "runs", map[string]interface{}{"run_id": "r1"})

	for _, ch := range []<-chan Event{a, b} {
		e := receive(t, ch)
		assert.Equal(t, RunStarted, e.Type)
		assert.Equal(t, "runs", e.Module)
		assert.Equal(t, "r1", e.Data["run_id"])
		assert.False(t, e.Timestamp.IsZero())
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	ch, unsubscribe := bus.Subscribe()
	unsubscribe()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, bus.Subscribers())

	// Emitting with no subscribers is a no-op
	bus.Emit(RunFailed, "runs", nil)
}

func TestBus_EmitNeverBlocks(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	_, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			bus.Emit(RunProgress, "runs", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full subscriber")
	}
	assert.Equal(t, uint64(10), bus.Dropped())
}

func TestBus_ConcurrentEmit(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				bus.Emit(RunProgress, "runs", nil)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(160), uint64(len(ch))+bus.Dropped())
}

func TestManager_EmitTypedData(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(zerolog.Nop())
	m := NewManager(bus, zerolog.New(&buf))
	assert.Same(t, bus, m.Bus())

	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	m.Emit("runs", &RunCompletedData{RunID: "r1", BestIndex: 17, BestObjective: -0.078, Feasible: true, DurationMs: 4})

	e := receive(t, ch)
	assert.Equal(t, RunCompleted, e.Type)
	assert.Equal(t, "r1", e.Data["run_id"])
	assert.Equal(t, float64(17), e.Data["best_index"])
	assert.Equal(t, true, e.Data["feasible"])

	assert.Contains(t, buf.String(), `"event_type":"RUN_COMPLETED"`)
	assert.Contains(t, buf.String(), `"level":"info"`)
}

func TestManager_ProgressLoggedAtDebug(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(NewBus(zerolog.Nop()), zerolog.New(&buf).Level(zerolog.InfoLevel))

	m.Emit("runs", &RunProgressData{RunID: "r1", Done: 1, Total: 4})
	assert.Empty(t, buf.String())
}

func TestManager_EmitError(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	m := NewManager(bus, zerolog.Nop())
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	m.EmitError("scheduler", errors.New("boom"), map[string]interface{}{"job": "solve"})

	e := receive(t, ch)
	require.Equal(t, ErrorOccurred, e.Type)
	assert.Equal(t, "boom", e.Data["error"])
	assert.Equal(t, map[string]interface{}{"job": "solve"}, e.Data["context"])
}

func TestEventDataTypes(t *testing.T) {
	tests := []struct {
		data EventData
		want EventType
	}{
		{&RunStartedData{}, RunStarted},
		{&RunProgressData{}, RunProgress},
		{&RunCompletedData{}, RunCompleted},
		{&RunFailedData{}, RunFailed},
		{&ScheduledRunSkippedData{}, ScheduledRunSkipped},
		{&ErrorEventData{}, ErrorOccurred},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.data.EventType())
	}
	assert.Nil(t, toMap(nil))
}
