package pipeline

import (
	"testing"

	"github.com/sbaralfred/gatewaycore/internal/message"
	"github.com/sbaralfred/gatewaycore/internal/reqcontext"
)

type recorderModule struct {
	Base
	name       string
	produce    bool
	order      *[]string
}

func (m *recorderModule) Name() string { return m.name }

func (m *recorderModule) Handle(req *message.Request, ctx *reqcontext.Context, resp *message.Response) Outcome {
	*m.order = append(*m.order, "req:"+m.name)
	if m.produce {
		resp.StatusCode = 200
		resp.StatusText = "OK"
		return Produced
	}
	return Continue
}

func (m *recorderModule) OnResponse(req *message.Request, resp *message.Response, ctx *reqcontext.Context) {
	*m.order = append(*m.order, "resp:"+m.name)
}

func TestHandleRunsAllModulesWhenNoneProduce(t *testing.T) {
	var order []string
	p := New()
	p.Add(&recorderModule{name: "a", order: &order}, 10)
	p.Add(&recorderModule{name: "b", order: &order}, 20)
	p.Add(&recorderModule{name: "c", order: &order}, 30)
	p.Sort()

	resp := p.Handle(&message.Request{}, reqcontext.New())

	if resp.StatusCode != 500 {
		t.Fatalf("expected sentinel 500, got %d", resp.StatusCode)
	}
	want := []string{"req:a", "req:b", "req:c", "resp:c", "resp:b", "resp:a"}
	assertOrder(t, order, want)
}

func TestHandleShortCircuitsAndOnlyVisitedModulesRespond(t *testing.T) {
	var order []string
	p := New()
	p.Add(&recorderModule{name: "a", order: &order}, 10)
	p.Add(&recorderModule{name: "b", produce: true, order: &order}, 20)
	p.Add(&recorderModule{name: "c", order: &order}, 30)
	p.Sort()

	resp := p.Handle(&message.Request{}, reqcontext.New())

	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 from producing module, got %d", resp.StatusCode)
	}
	want := []string{"req:a", "req:b", "resp:b", "resp:a"}
	assertOrder(t, order, want)
}

func TestAddRefusesOverriddenName(t *testing.T) {
	p := New()
	p.Override("a")
	var order []string
	p.Add(&recorderModule{name: "a", order: &order}, 10)
	p.Sort()

	if len(p.Names()) != 0 {
		t.Fatalf("expected overridden module to be refused, got %v", p.Names())
	}
}

func TestAddHonorsModuleDeclaredOverrides(t *testing.T) {
	p := New()
	var order []string
	p.Add(&recorderModule{name: "old", order: &order}, 10)
	p.Add(&overridingModule{recorderModule: recorderModule{name: "new", order: &order}, overrides: []string{"old"}}, 20)
	p.Sort()

	names := p.Names()
	if len(names) != 1 || names[0] != "new" {
		t.Fatalf("expected only 'new' to remain, got %v", names)
	}
}

func TestSortBreaksTiesByInsertionOrder(t *testing.T) {
	p := New()
	var order []string
	p.Add(&recorderModule{name: "first", order: &order}, 10)
	p.Add(&recorderModule{name: "second", order: &order}, 10)
	p.Sort()

	names := p.Names()
	if names[0] != "first" || names[1] != "second" {
		t.Fatalf("expected insertion order preserved on tie, got %v", names)
	}
}

type overridingModule struct {
	recorderModule
	overrides []string
}

func (m *overridingModule) Overrides() []string { return m.overrides }

func assertOrder(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("order length mismatch: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch at %d: got %v want %v", i, got, want)
		}
	}
}
