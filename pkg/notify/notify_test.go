package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tidegraph/trendwatch/pkg/digest"
)

type fakeNotifier struct {
	name   string
	err    error
	pushed int
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Push(ctx context.Context, d *digest.Digest) error {
	f.pushed++
	return f.err
}

func TestBroadcastContinuesPastFailures(t *testing.T) {
	bad := &fakeNotifier{name: "bad", err: errors.New("boom")}
	good := &fakeNotifier{name: "good"}
	m := NewManager([]Notifier{bad, good})

	err := m.Broadcast(context.Background(), sampleDigest())
	if err == nil || !strings.Contains(err.Error(), "bad: boom") {
		t.Errorf("Broadcast() error = %v", err)
	}
	if bad.pushed != 1 || good.pushed != 1 {
		t.Errorf("pushed = %d/%d, want 1/1", bad.pushed, good.pushed)
	}
}

func TestManagerNames(t *testing.T) {
	m := NewManager(nil)
	if m.HasNotifiers() {
		t.Error("empty manager claims notifiers")
	}

	m = NewManager([]Notifier{&fakeNotifier{name: "slack"}, &fakeNotifier{name: "bark"}})
	if !m.HasNotifiers() {
		t.Error("manager with notifiers claims none")
	}
	names := m.Names()
	if len(names) != 2 || names[0] != "slack" || names[1] != "bark" {
		t.Errorf("Names() = %v", names)
	}
}
