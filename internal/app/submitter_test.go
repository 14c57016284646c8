package app

import (
	"context"
	"testing"
	"time"

	"github.com/micromdm/nanolib/log"
)

func TestSubmitterQueueFull(t *testing.T) {
	env := newTestEnv(t)
	sub := NewSubmitter(env.requests, 1, log.NopLogger)

	if !sub.Enqueue("a") {
		t.Fatal("first enqueue should fit")
	}
	if sub.Enqueue("b") {
		t.Error("second enqueue should report a full queue")
	}
}

func TestSubmitterRun(t *testing.T) {
	env := newTestEnv(t)
	sub := NewSubmitter(env.requests, 4, log.NopLogger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		sub.Run(ctx)
	}()

	req := env.createRequest(t)
	if _, err := env.requests.NextStatus(ctx, req.PrepID); err != nil {
		t.Fatal(err)
	}
	// approved -> submitting, which hands the request to the submitter.
	if _, err := env.requests.NextStatus(ctx, req.PrepID); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		current, err := env.requests.Get(ctx, req.PrepID)
		if err != nil {
			t.Fatal(err)
		}
		if current.Status == "submitted" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("request stuck in status %s", current.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submitter did not stop")
	}
}
