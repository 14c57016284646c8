package locker

import (
	"errors"
	"sync"
	"testing"
)

func TestAcquireSerializesSameKey(t *testing.T) {
	l := New()

	const workers = 8
	const iterations = 100

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				release := l.Acquire("shared-key")
				counter++
				release()
			}
		}()
	}
	wg.Wait()

	if counter != workers*iterations {
		t.Errorf("counter = %d, want %d", counter, workers*iterations)
	}
}

func TestAcquireDifferentKeysDoNotBlock(t *testing.T) {
	l := New()

	releaseA := l.Acquire("key-a")
	defer releaseA()

	// A different key must still be acquirable without blocking.
	releaseB, err := l.TryAcquire("key-b")
	if err != nil {
		t.Fatalf("TryAcquire(key-b) = %v, want success while key-a is held", err)
	}
	releaseB()
}

func TestTryAcquireBusy(t *testing.T) {
	l := New()

	release := l.Acquire("contested")

	if _, err := l.TryAcquire("contested"); !errors.Is(err, ErrBusy) {
		t.Errorf("TryAcquire on held lock = %v, want ErrBusy", err)
	}

	release()

	release2, err := l.TryAcquire("contested")
	if err != nil {
		t.Fatalf("TryAcquire after release = %v, want success", err)
	}
	release2()
}

func TestReleaseIsReusable(t *testing.T) {
	l := New()

	for i := 0; i < 3; i++ {
		release, err := l.TryAcquire("cycled")
		if err != nil {
			t.Fatalf("iteration %d: TryAcquire = %v, want success", i, err)
		}
		release()
	}
}
