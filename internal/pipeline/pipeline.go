package pipeline

import (
	"net"
	"sort"

	"github.com/sbaralfred/gatewaycore/internal/message"
	"github.com/sbaralfred/gatewaycore/internal/reqcontext"
)

// RawTCPHandler supplants the HTTP pipeline entirely for an accepted
// connection when present.
type RawTCPHandler func(conn net.Conn)

type entry struct {
	priority int
	seq      int
	module   Module
}

// Pipeline is the ordered collection of modules plus an optional raw-TCP
// handler. Safe for concurrent Handle calls once Sort has been called;
// Add/Override/Sort are expected to run only during startup registration.
type Pipeline struct {
	entries         []entry
	overridden      map[string]bool
	sorted          bool
	seq             int
	RawTCP          RawTCPHandler
	ClientReadTimeoutSeconds int
}

// New returns an empty Pipeline.
func New() *Pipeline {
	return &Pipeline{overridden: make(map[string]bool)}
}

// Add refuses to insert if the module's name has been overridden; otherwise
// it honors the module's own declared overrides (removing any previously
// inserted module with those names) before appending.
func (p *Pipeline) Add(m Module, priority int) {
	p.sorted = false
	name := m.Name()
	if p.overridden[name] {
		return
	}
	for _, ov := range m.Overrides() {
		p.removeByName(ov)
	}
	p.seq++
	p.entries = append(p.entries, entry{priority: priority, seq: p.seq, module: m})
}

// Override marks name as overridden and removes any currently-installed
// module with that name.
func (p *Pipeline) Override(name string) {
	p.overridden[name] = true
	p.removeByName(name)
}

func (p *Pipeline) removeByName(name string) {
	kept := p.entries[:0]
	for _, e := range p.entries {
		if e.module.Name() != name {
			kept = append(kept, e)
		}
	}
	p.entries = kept
}

// Sort stably orders modules by ascending priority, ties broken by
// insertion order. Must run after all registration and before Handle.
func (p *Pipeline) Sort() {
	sort.SliceStable(p.entries, func(i, j int) bool {
		if p.entries[i].priority != p.entries[j].priority {
			return p.entries[i].priority < p.entries[j].priority
		}
		return p.entries[i].seq < p.entries[j].seq
	})
	p.sorted = true
}

// Handle runs the request through every module in priority order, stopping
// at the first one that produces a response, then runs the response
// post-processors of only the modules actually visited, in reverse order.
func (p *Pipeline) Handle(req *message.Request, ctx *reqcontext.Context) *message.Response {
	resp := message.NoHandlerSentinel()

	limit := len(p.entries)
	for i, e := range p.entries {
		if e.module.Handle(req, ctx, resp) == Produced {
			limit = i + 1
			break
		}
	}

	for i := limit - 1; i >= 0; i-- {
		p.entries[i].module.OnResponse(req, resp, ctx)
	}

	return resp
}

// Names returns the modules currently installed, in sorted order, for
// diagnostics and tests.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.entries))
	for i, e := range p.entries {
		names[i] = e.module.Name()
	}
	return names
}
