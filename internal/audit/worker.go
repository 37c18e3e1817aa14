package audit

import "context"

// ChannelStore bridges Emit into a worker-drained channel so emitters never
// wait on sink latency.
type ChannelStore struct {
	inbox chan<- Event
}

func NewChannelStore(inbox chan<- Event) *ChannelStore {
	return &ChannelStore{inbox: inbox}
}

func (s *ChannelStore) Append(ctx context.Context, event Event) error {
	select {
	case s.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListByUser is answered by the draining store, not the channel.
func (s *ChannelStore) ListByUser(context.Context, string) ([]Event, error) {
	return nil, nil
}

// Worker drains audit events from a channel into a store, decoupling
// emitters from sink latency.
type Worker struct {
	store Store
	inbox <-chan Event
}

func NewWorker(store Store, inbox <-chan Event) *Worker {
	return &Worker{store: store, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
		}
	}
}
