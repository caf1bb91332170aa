package server

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sbaralfred/gatewaycore/internal/middleware"
	"github.com/sbaralfred/gatewaycore/internal/pipeline"
	"github.com/sbaralfred/gatewaycore/internal/telemetry"
)

func newTestServer(pl *pipeline.Pipeline) *Server {
	cfg := Config{
		ListenAddr:             "127.0.0.1:0",
		BufferSize:             4096,
		ClientTimeoutSeconds:   2,
		MaxConnections:         100,
		WorkerThreads:          2,
		ShutdownTimeoutSeconds: 1,
	}
	return New(cfg, pl, telemetry.New(), zerolog.New(io.Discard))
}

func TestHandleConnServesHealthCheck(t *testing.T) {
	pl := pipeline.New()
	pl.Add(middleware.NewHealthCheck(middleware.HealthCheckConfig{Endpoint: "/health"}), middleware.PriorityHealthCheck)
	pl.Sort()

	s := newTestServer(pl)

	client, server := net.Pipe()
	defer client.Close()

	go s.handleConn(server)

	client.SetDeadline(time.Now().Add(2 * time.Second))
	client.Write([]byte("GET /health HTTP/1.1\r\nHost: x\r\n\r\n"))

	reader := bufio.NewReader(client)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("unexpected error reading status line: %v", err)
	}
	if statusLine != "HTTP/1.1 200 OK\r\n" {
		t.Fatalf("unexpected status line: %q", statusLine)
	}
}

func TestHandleConnRejectsUnknownMethod(t *testing.T) {
	pl := pipeline.New()
	pl.Sort()
	s := newTestServer(pl)

	client, server := net.Pipe()
	defer client.Close()

	go s.handleConn(server)

	client.SetDeadline(time.Now().Add(2 * time.Second))
	client.Write([]byte("FROB / HTTP/1.1\r\nHost: x\r\n\r\n"))

	reader := bufio.NewReader(client)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("unexpected error reading status line: %v", err)
	}
	if statusLine != "HTTP/1.1 400 Bad Request\r\n" {
		t.Fatalf("unexpected status line: %q", statusLine)
	}
}

func TestHandleConnRequiresLengthForPost(t *testing.T) {
	pl := pipeline.New()
	pl.Sort()
	s := newTestServer(pl)

	client, server := net.Pipe()
	defer client.Close()

	go s.handleConn(server)

	client.SetDeadline(time.Now().Add(2 * time.Second))
	client.Write([]byte("POST /x HTTP/1.1\r\nHost: x\r\n\r\n"))

	reader := bufio.NewReader(client)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("unexpected error reading status line: %v", err)
	}
	if statusLine != "HTTP/1.1 411 Length Required\r\n" {
		t.Fatalf("unexpected status line: %q", statusLine)
	}
}
