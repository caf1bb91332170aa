// Package message defines the in-memory HTTP request/response representation
// shared by every transport (HTTP/1.1, HTTP/2, HTTP/3) and every pipeline
// module. A request lives for exactly one request cycle and is mutated
// in place as it travels through the pipeline.
package message

import "strings"

// Header is a single (name, value) pair. Order and duplicates are
// preserved, matching HTTP/1.1 wire semantics.
type Header struct {
	Name  string
	Value string
}

// Request is the mutable, in-memory representation of an HTTP request.
type Request struct {
	Method  string
	Path    string
	Version string
	Headers []Header
	Body    []byte
}

// MethodSet is the fixed set of verbs the codec accepts.
var MethodSet = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true, "PATCH": true,
	"HEAD": true, "OPTIONS": true, "CONNECT": true, "TRACE": true,
}

// Header returns the first header matching name, case-insensitively.
func (r *Request) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// SetHeader replaces the first existing header matching name, or appends
// a new one if none exists.
func (r *Request) SetHeader(name, value string) {
	for i := range r.Headers {
		if strings.EqualFold(r.Headers[i].Name, name) {
			r.Headers[i].Value = value
			return
		}
	}
	r.Headers = append(r.Headers, Header{Name: name, Value: value})
}

// Clone returns a deep copy safe to mutate independently of r.
func (r *Request) Clone() *Request {
	hdrs := make([]Header, len(r.Headers))
	copy(hdrs, r.Headers)
	body := make([]byte, len(r.Body))
	copy(body, r.Body)
	return &Request{Method: r.Method, Path: r.Path, Version: r.Version, Headers: hdrs, Body: body}
}
