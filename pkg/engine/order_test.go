package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func testOrderer(d Decomposer) *TopologicalOrderer {
	return NewTopologicalOrderer(zerolog.Nop(), d)
}

func TestTopologicalOrderer_LinearChain(t *testing.T) {
	m := newFakeModel().
		addUnit("feed").addUnit("pump").addUnit("ro").
		connect("s1", "feed", "pump").
		connect("s2", "pump", "ro")

	result, err := testOrderer(nil).Order(context.Background(), m, OrderModePlanning, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	want := []string{"feed", "pump", "ro"}
	if len(result.Order) != len(want) {
		t.Fatalf("Expected %d units, got %d", len(want), len(result.Order))
	}
	for i, name := range want {
		if result.Order[i] != name {
			t.Errorf("Position %d: expected %s, got %s", i, name, result.Order[i])
		}
	}
}

func TestTopologicalOrderer_Deterministic(t *testing.T) {
	build := func() *fakeModel {
		return newFakeModel().
			addUnit("mixer").addUnit("splitA").addUnit("splitB").addUnit("product").
			connect("s1", "mixer", "splitA").
			connect("s2", "mixer", "splitB").
			connect("s3", "splitA", "product").
			connect("s4", "splitB", "product")
	}

	first, err := testOrderer(nil).Order(context.Background(), build(), OrderModePlanning, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	second, err := testOrderer(nil).Order(context.Background(), build(), OrderModePlanning, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	for i := range first.Order {
		if first.Order[i] != second.Order[i] {
			t.Fatalf("Order differs at %d: %v vs %v", i, first.Order, second.Order)
		}
	}
	// Ties break on the order units were added to the flowsheet.
	if first.Order[1] != "splitA" || first.Order[2] != "splitB" {
		t.Errorf("Expected insertion-order tie break, got %v", first.Order)
	}
}

func TestTopologicalOrderer_CycleWithTear(t *testing.T) {
	m := newFakeModel().
		addUnit("mixer").addUnit("reactor").
		connect("forward", "mixer", "reactor").
		connect("recycle", "reactor", "mixer")

	result, err := testOrderer(nil).Order(context.Background(), m, OrderModePlanning, []string{"recycle"})
	if err != nil {
		t.Fatalf("Expected no error with tear, got: %v", err)
	}
	if len(result.Order) != 2 {
		t.Fatalf("Expected both units ordered, got %v", result.Order)
	}
	if result.Order[0] != "mixer" || result.Order[1] != "reactor" {
		t.Errorf("Expected mixer before reactor, got %v", result.Order)
	}
	if len(result.TearsApplied) != 1 || result.TearsApplied[0] != "recycle" {
		t.Errorf("Expected recycle tear applied, got %v", result.TearsApplied)
	}
}

func TestTopologicalOrderer_CycleWithoutTearFails(t *testing.T) {
	m := newFakeModel().
		addUnit("feed").addUnit("mixer").addUnit("reactor").
		connect("inlet", "feed", "mixer").
		connect("forward", "mixer", "reactor").
		connect("recycle", "reactor", "mixer")

	_, err := testOrderer(nil).Order(context.Background(), m, OrderModePlanning, nil)
	if err == nil {
		t.Fatal("Expected cycle error")
	}
	var ee *EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("Expected EngineError, got %T", err)
	}
	if ee.Code != ErrCodeCycleDetected {
		t.Errorf("Expected code %s, got %s", ErrCodeCycleDetected, ee.Code)
	}
	remaining, ok := ee.Details["remaining"].([]string)
	if !ok || len(remaining) != 2 {
		t.Errorf("Expected 2 remaining units in details, got %v", ee.Details["remaining"])
	}
}

func TestTopologicalOrderer_UnknownTearIgnored(t *testing.T) {
	m := newFakeModel().
		addUnit("feed").addUnit("pump").
		connect("s1", "feed", "pump")

	result, err := testOrderer(nil).Order(context.Background(), m, OrderModePlanning, []string{"ghost"})
	if err != nil {
		t.Fatalf("Expected stale tear name to be ignored, got: %v", err)
	}
	if len(result.Order) != 2 {
		t.Errorf("Expected full order, got %v", result.Order)
	}
	if len(result.TearsApplied) != 0 {
		t.Errorf("Expected no tears applied, got %v", result.TearsApplied)
	}
}

func TestTopologicalOrderer_BoundModeDelegates(t *testing.T) {
	d := &fakeDecomposer{seq: []string{"reactor", "mixer"}}
	m := newFakeModel().addUnit("mixer").addUnit("reactor")

	result, err := testOrderer(d).Order(context.Background(), m, OrderModeBound, []string{"recycle"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Mode != OrderModeBound {
		t.Errorf("Expected bound mode result, got %s", result.Mode)
	}
	if len(result.Order) != 2 || result.Order[0] != "reactor" {
		t.Errorf("Expected decomposer sequence, got %v", result.Order)
	}
	if len(d.opts) != 1 || len(d.opts[0].TearEdges) != 1 {
		t.Fatalf("Expected tear edges forwarded, got %+v", d.opts)
	}
}

func TestTopologicalOrderer_BoundModeNeverAllowsMIP(t *testing.T) {
	d := &fakeDecomposer{seq: []string{"a"}}
	m := newFakeModel().addUnit("a")

	_, err := testOrderer(d).Order(context.Background(), m, OrderModeBound, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	for _, opts := range d.opts {
		if opts.AllowMIP {
			t.Error("Expected AllowMIP to stay unset on decomposer calls")
		}
	}
}

func TestTopologicalOrderer_BoundModeRequiresDecomposer(t *testing.T) {
	m := newFakeModel().addUnit("a")
	if _, err := testOrderer(nil).Order(context.Background(), m, OrderModeBound, nil); err == nil {
		t.Fatal("Expected error without a decomposer")
	}
}
