package repository

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"feedback-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type fakeStream struct {
	events chan struct{}
	mu     sync.Mutex
	err    error
	closed atomic.Bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan struct{})}
}

func (f *fakeStream) Next(ctx context.Context) bool {
	select {
	case _, ok := <-f.events:
		return ok
	case <-ctx.Done():
		return false
	}
}

func (f *fakeStream) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeStream) Close(ctx context.Context) error {
	f.closed.Store(true)
	return nil
}

func (f *fakeStream) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
	close(f.events)
}

type fakeCollection struct {
	mu   sync.Mutex
	docs []string
	err  error
}

func (c *fakeCollection) set(docs ...string) {
	c.mu.Lock()
	c.docs = docs
	c.mu.Unlock()
}

func (c *fakeCollection) failLoads(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *fakeCollection) load(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return slices.Clone(c.docs), nil
}

type recorder struct {
	data      chan []string
	cancelled chan error
}

func newRecorder() *recorder {
	return &recorder{data: make(chan []string, 8), cancelled: make(chan error, 1)}
}

func (r *recorder) listener() store.Listener[string] {
	return store.Listener[string]{
		OnData:      func(docs []string) { r.data <- docs },
		OnCancelled: func(err error) { r.cancelled <- err },
	}
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitFor):
		t.Fatal("nothing received")
		var zero T
		return zero
	}
}

func startFollow(t *testing.T, stream *fakeStream, coll *fakeCollection, rec *recorder) *changeStreamSub {
	initial, err := coll.load(context.Background())
	require.NoError(t, err)
	sub := follow("docs", stream, initial, coll.load, slices.Equal[[]string], rec.listener())
	t.Cleanup(sub.Close)
	return sub
}

func TestFollowSkipsUnchangedResults(t *testing.T) {
	stream := newFakeStream()
	coll := &fakeCollection{docs: []string{"a"}}
	rec := newRecorder()
	startFollow(t, stream, coll, rec)

	assert.Equal(t, []string{"a"}, receive(t, rec.data))

	// an event that leaves the result as it was is not delivered
	stream.events <- struct{}{}
	coll.set("a", "b")
	stream.events <- struct{}{}
	assert.Equal(t, []string{"a", "b"}, receive(t, rec.data))

	coll.set()
	stream.events <- struct{}{}
	assert.Empty(t, receive(t, rec.data))
	assert.Empty(t, rec.cancelled)
}

func TestFollowReportsLoadFailure(t *testing.T) {
	stream := newFakeStream()
	coll := &fakeCollection{docs: []string{"a"}}
	rec := newRecorder()
	sub := startFollow(t, stream, coll, rec)
	receive(t, rec.data)

	coll.failLoads(errors.New("read denied"))
	stream.events <- struct{}{}
	assert.EqualError(t, receive(t, rec.cancelled), "read denied")

	<-sub.done
	assert.True(t, stream.closed.Load())
}

func TestFollowReportsStreamFailure(t *testing.T) {
	stream := newFakeStream()
	coll := &fakeCollection{docs: []string{"a"}}
	rec := newRecorder()
	sub := startFollow(t, stream, coll, rec)
	receive(t, rec.data)

	stream.fail(errors.New("stream lost"))
	assert.EqualError(t, receive(t, rec.cancelled), "stream lost")

	<-sub.done
	assert.True(t, stream.closed.Load())
}

func TestFollowCloseWaitsForLoop(t *testing.T) {
	stream := newFakeStream()
	coll := &fakeCollection{docs: []string{"a"}}
	rec := newRecorder()
	sub := startFollow(t, stream, coll, rec)
	receive(t, rec.data)

	sub.Close()
	assert.True(t, stream.closed.Load())
	assert.Empty(t, rec.cancelled)
	assert.Empty(t, rec.data)
}
