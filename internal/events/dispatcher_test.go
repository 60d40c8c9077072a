package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/request-service/internal/domain"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher(nil)

	var got []Event
	d.Subscribe(EventRequestAssigned, func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})
	d.Subscribe(EventInvoiceIssued, func(context.Context, Event) error {
		t.Fatal("wrong type delivered")
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventRequestAssigned, EntityID: "r-1"}))
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].Timestamp.IsZero())
	assert.Equal(t, "r-1", got[0].EntityID)
}

func TestDispatcherIsolatesFailingHandler(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	calls := 0
	d.Subscribe(EventPaymentCompleted, func(context.Context, Event) error {
		calls++
		return errors.New("boom")
	})
	d.Subscribe(EventPaymentCompleted, func(context.Context, Event) error {
		calls++
		return nil
	})

	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventPaymentCompleted}))
	assert.Equal(t, 2, calls)
}

type stubSubject struct{}

func (stubSubject) SubjectID() string               { return "e-1" }
func (stubSubject) SubjectType() domain.SubjectType { return domain.SubjectTypeEmployee }

func TestActorOf(t *testing.T) {
	assert.Equal(t, Actor{}, ActorOf(nil))
	assert.Equal(t, Actor{Type: domain.SubjectTypeEmployee, ID: "e-1"}, ActorOf(stubSubject{}))
}
