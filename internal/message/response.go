package message

import (
	"strconv"
	"strings"
)

// Response is the mutable, in-memory representation of an HTTP response.
// A fresh Response starts out as the "no handler" sentinel until a module
// produces one.
type Response struct {
	Version    string
	StatusCode int
	StatusText string
	Headers    []Header
	Body       []byte
}

// NoHandlerSentinel is the response the pipeline starts every request with.
func NoHandlerSentinel() *Response {
	return Error(500, "No handler")
}

// Error builds a short plain-text error response.
func Error(code int, text string) *Response {
	body := []byte(text)
	return &Response{
		Version:    "HTTP/1.1",
		StatusCode: code,
		StatusText: text,
		Headers: []Header{
			{Name: "Content-Type", Value: "text/plain"},
			{Name: "Content-Length", Value: strconv.Itoa(len(body))},
		},
		Body: body,
	}
}

// JSON builds a response with an application/json body.
func JSON(code int, statusText, body string) *Response {
	b := []byte(body)
	return &Response{
		Version:    "HTTP/1.1",
		StatusCode: code,
		StatusText: statusText,
		Headers: []Header{
			{Name: "Content-Type", Value: "application/json"},
			{Name: "Content-Length", Value: strconv.Itoa(len(b))},
		},
		Body: b,
	}
}

// Header returns the first header matching name, case-insensitively.
func (resp *Response) Header(name string) (string, bool) {
	for _, h := range resp.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// SetHeader replaces the first existing header matching name, or appends
// a new one if none exists.
func (resp *Response) SetHeader(name, value string) {
	for i := range resp.Headers {
		if strings.EqualFold(resp.Headers[i].Name, name) {
			resp.Headers[i].Value = value
			return
		}
	}
	resp.Headers = append(resp.Headers, Header{Name: name, Value: value})
}

// RemoveHeader drops every header matching name, case-insensitively.
func (resp *Response) RemoveHeader(name string) {
	kept := resp.Headers[:0]
	for _, h := range resp.Headers {
		if !strings.EqualFold(h.Name, name) {
			kept = append(kept, h)
		}
	}
	resp.Headers = kept
}

// Clone returns a deep copy safe to mutate independently of resp, used by
// the cache module to store and re-serve entries without aliasing.
func (resp *Response) Clone() *Response {
	hdrs := make([]Header, len(resp.Headers))
	copy(hdrs, resp.Headers)
	body := make([]byte, len(resp.Body))
	copy(body, resp.Body)
	return &Response{
		Version:    resp.Version,
		StatusCode: resp.StatusCode,
		StatusText: resp.StatusText,
		Headers:    hdrs,
		Body:       body,
	}
}
