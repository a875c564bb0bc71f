package job

import (
	"sync"
	"testing"
	"time"
)

type countJob struct {
	wg *sync.WaitGroup
}

func (j *countJob) Execute() {
	j.wg.Done()
}

func TestDispatch(t *testing.T) {
	queue := NewQueue(4)
	pool := NewWorkerPool(2, queue)
	pool.Start()

	var wg sync.WaitGroup
	wg.Add(8)

	for i := 0; i < 8; i++ {
		queue.Dispatch(&countJob{wg: &wg}, 0)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("dispatched jobs were not executed")
	}
}

func TestDispatchDoesNotBlock(t *testing.T) {
	// no worker pool attached; Dispatch must still return immediately
	queue := NewQueue(1)

	start := time.Now()
	for i := 0; i < 16; i++ {
		queue.Dispatch(&countJob{wg: &sync.WaitGroup{}}, 0)
	}

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("dispatch blocked the caller for %s", elapsed)
	}
}
