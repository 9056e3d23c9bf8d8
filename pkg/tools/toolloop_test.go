package tools

import (
	"fmt"
	"strings"
	"testing"

	"github.com/AutoByteus/autobyteus-sub000/pkg/providers"
)

func TestLoopGuard_TripsOnRepeatedSignature(t *testing.T) {
	guard := NewLoopGuard()
	call := func(id string) []providers.ToolCallSpec {
		return []providers.ToolCallSpec{{ID: id, Name: "looptool", Arguments: map[string]interface{}{"q": "same"}}}
	}

	for i := 1; i <= 2; i++ {
		if stop, _ := guard.Observe(call(fmt.Sprint(i)), i); stop {
			t.Fatalf("guard tripped early at iteration %d", i)
		}
	}
	stop, msg := guard.Observe(call("3"), 3)
	if !stop || !strings.Contains(msg, "repeated tool-call loop") {
		t.Fatalf("expected signature breaker, got stop=%v msg=%q", stop, msg)
	}
}

func TestLoopGuard_TripsOnToolDrift(t *testing.T) {
	guard := NewLoopGuard()
	for i := 1; i <= 8; i++ {
		mode := "a"
		if i%2 == 0 {
			mode = "b"
		}
		calls := []providers.ToolCallSpec{
			{ID: fmt.Sprintf("loop-%d", i), Name: "looptool", Arguments: map[string]interface{}{"mode": mode}},
			{ID: fmt.Sprintf("noise-%d", i), Name: "noisetool", Arguments: map[string]interface{}{"n": i}},
		}
		stop, msg := guard.Observe(calls, i)
		if i < 8 && stop {
			t.Fatalf("guard tripped early at iteration %d: %s", i, msg)
		}
		if i == 8 && (!stop || !strings.Contains(msg, "one tool kept being called repeatedly")) {
			t.Fatalf("expected drift breaker, got stop=%v msg=%q", stop, msg)
		}
	}
}

func TestLoopGuard_DistinctCallsPass(t *testing.T) {
	guard := NewLoopGuard()
	for i := 1; i <= 20; i++ {
		calls := []providers.ToolCallSpec{{ID: fmt.Sprint(i), Name: "read_file", Arguments: map[string]interface{}{"path": fmt.Sprintf("f%d", i)}}}
		if stop, msg := guard.Observe(calls, i); stop {
			t.Fatalf("distinct calls tripped the guard at %d: %s", i, msg)
		}
	}
}
