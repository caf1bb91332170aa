package codec

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/sbaralfred/gatewaycore/internal/message"
)

func TestParseRequestRoundTrip(t *testing.T) {
	req := &message.Request{
		Method:  "POST",
		Path:    "/widgets?x=1",
		Version: "HTTP/1.1",
		Headers: []message.Header{
			{Name: "Host", Value: "example.com"},
			{Name: "Content-Length", Value: "5"},
		},
		Body: []byte("hello"),
	}
	raw := SerializeRequest(req)

	parsed, err := ParseRequest(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Method != req.Method || parsed.Path != req.Path || parsed.Version != req.Version {
		t.Fatalf("request line mismatch: %+v", parsed)
	}
	if !bytes.Equal(parsed.Body, req.Body) {
		t.Fatalf("body mismatch: %q", parsed.Body)
	}
	for i, h := range req.Headers {
		if parsed.Headers[i] != h {
			t.Fatalf("header %d mismatch: got %+v want %+v", i, parsed.Headers[i], h)
		}
	}
}

func TestParseRequestRejectsUnknownMethod(t *testing.T) {
	_, err := ParseRequest([]byte("FROB / HTTP/1.1\r\nHost: x\r\n\r\n"))
	if err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestParseRequestRejectsBadVersion(t *testing.T) {
	_, err := ParseRequest([]byte("GET / HTTP/9.9\r\nHost: x\r\n\r\n"))
	if err == nil {
		t.Fatal("expected error for bad version")
	}
}

func TestParseRequestRejectsFourthToken(t *testing.T) {
	_, err := ParseRequest([]byte("GET / HTTP/1.1 extra\r\nHost: x\r\n\r\n"))
	if err == nil {
		t.Fatal("expected error for extra request-line token")
	}
}

func TestParseRequestRejectsControlByteInPath(t *testing.T) {
	_, err := ParseRequest([]byte("GET /\x7f HTTP/1.1\r\nHost: x\r\n\r\n"))
	if err == nil {
		t.Fatal("expected error for 0x7F path byte")
	}
}

func TestParseRequestTruncatesBodyToContentLength(t *testing.T) {
	raw := []byte("POST / HTTP/1.1\r\nContent-Length: 3\r\n\r\nabcdef")
	parsed, err := ParseRequest(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(parsed.Body) != "abc" {
		t.Fatalf("expected truncated body 'abc', got %q", parsed.Body)
	}
}

func TestChunkedCompleteDetectsSplitTerminator(t *testing.T) {
	full := []byte("5\r\nhello\r\n0\r\n\r\n")
	for split := 1; split < len(full); split++ {
		first := full[:split]
		if _, complete := chunkedComplete(first); complete {
			t.Fatalf("split %d: falsely reported complete on partial data", split)
		}
	}
	if _, complete := chunkedComplete(full); !complete {
		t.Fatal("expected complete on full chunked body")
	}
}

func TestChunkedCompleteRejectsSpoofedZeroPattern(t *testing.T) {
	// The first chunk's data payload contains the literal bytes "0\r\n",
	// which a naive scan for the terminator pattern would misread as the
	// end of the body. The real terminator is the zero-size chunk after it.
	body := []byte("5\r\n0\r\n12\r\n0\r\n\r\n")
	if valid, complete := chunkedComplete(body[:8]); !valid || complete {
		t.Fatal("must not report complete before the real terminator chunk arrives")
	}
	if _, complete := chunkedComplete(body); !complete {
		t.Fatal("expected completion once the real terminator chunk arrives")
	}
}

func TestReadMessageHonorsContentLength(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		client.Write([]byte("POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"))
	}()

	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	data, outcome, err := ReadMessage(server, 4096)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != ReadComplete {
		t.Fatalf("expected ReadComplete, got %v", outcome)
	}
	if !bytes.Contains(data, []byte("hello")) {
		t.Fatalf("expected body in read data, got %q", data)
	}
}

func TestReadMessageTimesOutOnPartialHeaders(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		client.Write([]byte("GET / HTTP/1.1\r\nHost: x"))
	}()

	server.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, outcome, err := ReadMessage(server, 4096)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != ReadTimedOut {
		t.Fatalf("expected ReadTimedOut, got %v", outcome)
	}
}
