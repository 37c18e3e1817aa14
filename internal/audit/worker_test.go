package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monedero/pkg/requestcontext"
)

func TestWorkerDrainsChannelIntoStore(t *testing.T) {
	inbox := make(chan Event, 8)
	sink := NewMemoryStore()
	worker := NewWorker(sink, inbox)

	done := make(chan error, 1)
	go func() { done <- worker.Run(context.Background()) }()

	publisher := NewPublisher(NewChannelStore(inbox))
	ctx := requestcontext.WithActor(context.Background(), "system")
	ctx = requestcontext.WithTime(ctx, time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, publisher.Emit(ctx, Event{Action: EventUserCreated, UserID: "u-1"}))
	require.NoError(t, publisher.Emit(ctx, Event{Action: EventPhoneConfirmed, UserID: "u-1"}))
	close(inbox)

	require.NoError(t, <-done)

	events, err := sink.ListByUser(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventUserCreated, events[0].Action)
	assert.Equal(t, EventPhoneConfirmed, events[1].Action)
	assert.Equal(t, "system", events[0].Actor)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	inbox := make(chan Event)
	worker := NewWorker(NewMemoryStore(), inbox)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, worker.Run(ctx), context.Canceled)
}

func TestChannelStoreRejectsWhenFullAndCanceled(t *testing.T) {
	inbox := make(chan Event) // unbuffered, nobody draining
	store := NewChannelStore(inbox)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, store.Append(ctx, Event{Action: EventUserCreated}))
}
