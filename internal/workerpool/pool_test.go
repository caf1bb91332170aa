package workerpool

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func discardLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestTryEnqueueProcessesConnection(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	p := New(2, 4, func(conn net.Conn) {
		defer wg.Done()
		conn.Close()
	}, discardLogger())
	defer p.Close()

	server, client := net.Pipe()
	defer client.Close()

	if !p.TryEnqueue(server) {
		t.Fatal("expected TryEnqueue to succeed with capacity available")
	}
	wg.Wait()
}

func TestTryEnqueueRejectsWhenSaturated(t *testing.T) {
	block := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)

	p := New(1, 1, func(conn net.Conn) {
		started.Done()
		<-block
		conn.Close()
	}, discardLogger())
	defer func() {
		close(block)
		p.Close()
	}()

	s1, c1 := net.Pipe()
	defer c1.Close()
	if !p.TryEnqueue(s1) {
		t.Fatal("expected first enqueue to succeed")
	}
	started.Wait()

	s2, c2 := net.Pipe()
	defer c2.Close()
	defer s2.Close()
	if !p.TryEnqueue(s2) {
		t.Fatal("expected second enqueue to fill the one-slot queue")
	}

	s3, c3 := net.Pipe()
	defer c3.Close()
	defer s3.Close()
	if p.TryEnqueue(s3) {
		t.Fatal("expected third enqueue to be rejected once saturated")
	}
}

func TestPanicInHandlerDoesNotKillWorker(t *testing.T) {
	var processed sync.WaitGroup
	processed.Add(2)

	p := New(1, 2, func(conn net.Conn) {
		defer processed.Done()
		defer conn.Close()
		panic("boom")
	}, discardLogger())
	defer p.Close()

	for i := 0; i < 2; i++ {
		server, client := net.Pipe()
		client.Close()
		if !p.TryEnqueue(server) {
			t.Fatal("expected enqueue to succeed")
		}
	}

	done := make(chan struct{})
	go func() {
		processed.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not process both connections after a panic")
	}
}
