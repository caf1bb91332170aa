// Package codec implements the byte-level HTTP/1 parser, serializer, and
// incremental socket reader shared by the server's client-facing path and
// the proxy forwarder's backend-facing path.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/sbaralfred/gatewaycore/internal/message"
)

// Hard caps on an incoming message, mapped by callers to 431 and 413.
const (
	MaxHeaderSize = 65536
	MaxBodySize   = 16 * 1024 * 1024
)

var (
	// ErrHeadersTooLarge is returned when the header block exceeds MaxHeaderSize.
	ErrHeadersTooLarge = errors.New("headers too large")
	// ErrBodyTooLarge is returned when the body exceeds MaxBodySize.
	ErrBodyTooLarge = errors.New("body too large")
	// ErrMalformed covers any other parse failure.
	ErrMalformed = errors.New("malformed message")
)

var crlfcrlf = []byte("\r\n\r\n")

// findHeaderEnd locates the byte offset of the CRLFCRLF header terminator,
// or -1 if absent.
func findHeaderEnd(d []byte) int {
	return bytes.Index(d, crlfcrlf)
}

func rawHeader(headerText, name string) (string, bool) {
	for _, line := range strings.Split(headerText, "\r\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(k), name) {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

func parseHeaderBlock(text string) []message.Header {
	var headers []message.Header
	lines := strings.Split(text, "\r\n")
	for _, ln := range lines {
		if ln == "" {
			continue
		}
		k, v, ok := strings.Cut(ln, ":")
		if !ok {
			continue
		}
		headers = append(headers, message.Header{Name: strings.TrimSpace(k), Value: strings.TrimSpace(v)})
	}
	return headers
}

func validPathByte(b byte) bool {
	return b >= 0x20 && b != 0x7F
}

// ParseRequest decodes an HTTP/1 request from raw bytes. A nil error and
// nil request never both occur; a non-nil error is always ErrMalformed, which
// the caller maps to a 400.
func ParseRequest(raw []byte) (*message.Request, error) {
	end := findHeaderEnd(raw)
	if end < 0 {
		return nil, ErrMalformed
	}
	headerText := string(raw[:end])
	lines := strings.SplitN(headerText, "\r\n", 2)
	requestLine := lines[0]

	fields := strings.Fields(requestLine)
	if len(fields) != 3 {
		return nil, ErrMalformed
	}
	method, path, version := fields[0], fields[1], fields[2]

	if !message.MethodSet[method] {
		return nil, ErrMalformed
	}
	for i := 0; i < len(path); i++ {
		if !validPathByte(path[i]) {
			return nil, ErrMalformed
		}
	}
	if version != "HTTP/1.0" && version != "HTTP/1.1" {
		return nil, ErrMalformed
	}

	var restText string
	if len(lines) > 1 {
		restText = lines[1]
	}
	headers := parseHeaderBlock(restText)

	bodyStart := end + len(crlfcrlf)
	var body []byte
	if cl, ok := contentLength(headers); ok && bodyStart < len(raw) {
		upper := bodyStart + cl
		if upper > len(raw) {
			upper = len(raw)
		}
		body = append([]byte(nil), raw[bodyStart:upper]...)
	}

	return &message.Request{Method: method, Path: path, Version: version, Headers: headers, Body: body}, nil
}

func contentLength(headers []message.Header) (int, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(h.Value))
			if err != nil || n < 0 {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}

// SerializeRequest is the inverse of ParseRequest.
func SerializeRequest(req *message.Request) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s %s\r\n", req.Method, req.Path, req.Version)
	for _, h := range req.Headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h.Name, h.Value)
	}
	buf.WriteString("\r\n")
	buf.Write(req.Body)
	return buf.Bytes()
}

// ParseResponse decodes an HTTP/1 response from raw bytes, used by the
// proxy forwarder to interpret a backend's reply.
func ParseResponse(raw []byte) (*message.Response, error) {
	end := findHeaderEnd(raw)
	if end < 0 {
		return nil, ErrMalformed
	}
	headerText := string(raw[:end])
	lines := strings.SplitN(headerText, "\r\n", 2)
	statusLine := lines[0]

	fields := strings.SplitN(statusLine, " ", 3)
	if len(fields) < 2 {
		return nil, ErrMalformed
	}
	version := fields[0]
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, ErrMalformed
	}
	statusText := ""
	if len(fields) == 3 {
		statusText = fields[2]
	}

	var restText string
	if len(lines) > 1 {
		restText = lines[1]
	}
	headers := parseHeaderBlock(restText)

	bodyStart := end + len(crlfcrlf)
	var body []byte
	if cl, ok := contentLength(headers); ok && bodyStart < len(raw) {
		upper := bodyStart + cl
		if upper > len(raw) {
			upper = len(raw)
		}
		body = append([]byte(nil), raw[bodyStart:upper]...)
	} else if bodyStart < len(raw) {
		body = append([]byte(nil), raw[bodyStart:]...)
	}

	return &message.Response{Version: version, StatusCode: code, StatusText: statusText, Headers: headers, Body: body}, nil
}

// SerializeResponse is the inverse of ParseResponse.
func SerializeResponse(resp *message.Response) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %d %s\r\n", resp.Version, resp.StatusCode, resp.StatusText)
	for _, h := range resp.Headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h.Name, h.Value)
	}
	buf.WriteString("\r\n")
	buf.Write(resp.Body)
	return buf.Bytes()
}

// ReadOutcome classifies how ReadMessage's read loop ended.
type ReadOutcome int

const (
	// ReadComplete means a full message was assembled.
	ReadComplete ReadOutcome = iota
	// ReadTimedOut means the read deadline elapsed before a full message arrived.
	ReadTimedOut
	// ReadError means an unrecoverable error occurred; Err holds the detail.
	ReadError
)

// ReadMessage pulls from conn into a growable buffer, detecting the header
// terminator and then honoring Content-Length or chunked framing (full
// validation of every intermediate chunk, since the short-circuit
// zero-chunk scan can be spoofed by a body containing the literal bytes
// "0\r\n"). conn must already have its read deadline set by the caller.
func ReadMessage(conn net.Conn, bufSize int) ([]byte, ReadOutcome, error) {
	if bufSize < 1024 {
		bufSize = 1024
	}
	var d []byte
	b := make([]byte, bufSize)

	headerDone := false
	bodyStart := 0
	var contentLen *int
	isChunked := false

	for {
		n, err := conn.Read(b)
		if n > 0 {
			d = append(d, b[:n]...)

			if !headerDone {
				end := findHeaderEnd(d)
				if (end < 0 && len(d) > MaxHeaderSize) || (end >= 0 && end+len(crlfcrlf) > MaxHeaderSize) {
					return nil, ReadError, ErrHeadersTooLarge
				}
				if end >= 0 {
					headerDone = true
					bodyStart = end + len(crlfcrlf)
					headerText := string(d[:end])

					if clStr, ok := rawHeader(headerText, "Content-Length"); ok {
						if cl, convErr := strconv.Atoi(clStr); convErr == nil && cl >= 0 {
							if cl > MaxBodySize {
								return nil, ReadError, ErrBodyTooLarge
							}
							contentLen = &cl
						}
					}
					if te, ok := rawHeader(headerText, "Transfer-Encoding"); ok {
						isChunked = strings.EqualFold(te, "chunked")
					}
					if contentLen == nil && !isChunked {
						goto done
					}
				}
			}

			if headerDone {
				bodyLen := len(d) - bodyStart
				if bodyLen > MaxBodySize {
					return nil, ReadError, ErrBodyTooLarge
				}
				if contentLen != nil {
					if bodyLen >= *contentLen {
						goto done
					}
				} else if isChunked {
					if ok, complete := chunkedComplete(d[bodyStart:]); ok && complete {
						goto done
					}
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				goto done
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if len(d) == 0 {
					return nil, ReadTimedOut, nil
				}
				if !headerDone {
					return nil, ReadTimedOut, nil
				}
				if contentLen != nil && len(d)-bodyStart < *contentLen {
					return nil, ReadTimedOut, nil
				}
				goto done
			}
			return nil, ReadError, err
		}
	}

done:
	if len(d) == 0 {
		return nil, ReadError, errors.New("connection closed")
	}
	return d, ReadComplete, nil
}

// chunkedComplete walks every chunk in body, validating each hex size and
// its trailing CRLF. It returns (validSoFar, complete): validSoFar is false
// if the data seen so far is malformed; complete is true once the
// terminating zero-size chunk and its final CRLF have both arrived.
func chunkedComplete(body []byte) (valid bool, complete bool) {
	i := 0
	for i < len(body) {
		sizeEnd := bytes.IndexByte(body[i:], '\r')
		if sizeEnd < 0 {
			return true, false
		}
		sizeEnd += i
		if sizeEnd+1 >= len(body) {
			return true, false
		}
		if body[sizeEnd+1] != '\n' {
			return false, false
		}
		sizeField := string(body[i:sizeEnd])
		if semi := strings.IndexByte(sizeField, ';'); semi >= 0 {
			sizeField = sizeField[:semi]
		}
		chunkSize, err := strconv.ParseInt(strings.TrimSpace(sizeField), 16, 64)
		if err != nil || chunkSize < 0 {
			return false, false
		}

		if chunkSize == 0 {
			after := sizeEnd + 2
			if after > len(body) {
				return true, false
			}
			if after == len(body) {
				return true, false
			}
			if bytes.HasPrefix(body[after:], []byte("\r\n")) {
				return true, true
			}
			return true, false
		}

		dataStart := sizeEnd + 2
		dataEnd := dataStart + int(chunkSize)
		if dataEnd+1 >= len(body) {
			return true, false
		}
		if body[dataEnd] != '\r' || body[dataEnd+1] != '\n' {
			return false, false
		}
		i = dataEnd + 2
	}
	return true, false
}
