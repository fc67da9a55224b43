package repository

import (
	"context"

	"feedback-backend/internal/store"

	"github.com/golang/glog"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// eventStream is the part of *mongo.ChangeStream a live query consumes.
type eventStream interface {
	Next(ctx context.Context) bool
	Err() error
	Close(ctx context.Context) error
}

var _ eventStream = (*mongo.ChangeStream)(nil)

type changeStreamSub struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *changeStreamSub) Close() {
	s.cancel()
	<-s.done
}

// listen turns a change stream on collection into a live query. Every change
// event re-runs load; the listener only hears about results that differ from
// the previous delivery.
func listen[T any](ctx context.Context, collection *mongo.Collection, load func(context.Context) ([]T, error), equal func(a, b []T) bool, l store.Listener[T]) (store.Subscription, error) {
	stream, err := collection.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, err
	}
	initial, err := load(ctx)
	if err != nil {
		stream.Close(context.Background())
		return nil, err
	}
	return follow(collection.Name(), stream, initial, load, equal, l), nil
}

// follow delivers initial, then a fresh load after every event on stream
// until the subscription is closed or the stream fails. The stream is closed
// when the loop ends.
func follow[T any](name string, stream eventStream, initial []T, load func(context.Context) ([]T, error), equal func(a, b []T) bool, l store.Listener[T]) *changeStreamSub {
	streamCtx, cancel := context.WithCancel(context.Background())
	sub := &changeStreamSub{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		defer stream.Close(context.Background())

		last := initial
		l.OnData(initial)
		for stream.Next(streamCtx) {
			next, err := load(streamCtx)
			if err != nil {
				if streamCtx.Err() == nil && l.OnCancelled != nil {
					l.OnCancelled(err)
				}
				return
			}
			if equal(last, next) {
				continue
			}
			last = next
			glog.V(2).Infof("[live]%s delivered %d\n", name, len(next))
			l.OnData(next)
		}
		if err := stream.Err(); err != nil && streamCtx.Err() == nil && l.OnCancelled != nil {
			l.OnCancelled(err)
		}
	}()
	return sub
}
