package notify

import (
	"context"
	"sync"

	"github.com/golang/glog"
)

// MockSlack implements Notifier by logging messages.
type MockSlack struct {
	mu        sync.Mutex
	published []string
}

func NewMockSlack() *MockSlack {
	return &MockSlack{}
}

func (m *MockSlack) Publish(ctx context.Context, message string) error {
	m.mu.Lock()
	m.published = append(m.published, message)
	m.mu.Unlock()
	glog.Infof("[slack]published %q\n", message)
	return nil
}

// Published returns a copy of every message published so far.
func (m *MockSlack) Published() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.published...)
}
