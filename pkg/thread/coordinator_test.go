package thread

import (
	"context"
	"testing"
)

func TestCoordinator_LoadSlot(t *testing.T) {
	c := NewCoordinator()

	ctx, first, ok := c.StartLoad(context.Background())
	if !ok {
		t.Fatal("want first load started")
	}
	if _, _, ok := c.StartLoad(context.Background()); ok {
		t.Error("want second load rejected while the first runs")
	}
	if !c.Loading() {
		t.Error("want loading while the slot is held")
	}

	c.CancelLoad()
	if ctx.Err() == nil {
		t.Error("want cancelled load context")
	}
	if c.Loading() {
		t.Error("want slot free after cancel")
	}

	_, second, ok := c.StartLoad(context.Background())
	if !ok {
		t.Fatal("want load started after cancel")
	}
	if c.FinishLoad(first) {
		t.Error("want stale load unable to free the slot")
	}
	if !c.Loading() {
		t.Error("want newer load still tracked")
	}
	if !c.FinishLoad(second) {
		t.Error("want current load to free the slot")
	}
	if c.Loading() {
		t.Error("want slot free")
	}
}

func TestCoordinator_Ops(t *testing.T) {
	c := NewCoordinator()

	_, a := c.StartOp(context.Background())
	_, b := c.StartOp(context.Background())
	if c.InFlightOps() != 2 {
		t.Errorf("want 2 ops in flight, got %d", c.InFlightOps())
	}
	if a.ID == b.ID {
		t.Error("want distinct operation ids")
	}

	c.FinishOp(a)
	c.FinishOp(b)
	if c.InFlightOps() != 0 {
		t.Errorf("want no ops in flight, got %d", c.InFlightOps())
	}
}

func TestCoordinator_DeleteSlotOverwrite(t *testing.T) {
	c := NewCoordinator()

	firstCtx, first := c.StartDelete(context.Background())
	_, second := c.StartDelete(context.Background())
	if firstCtx.Err() != nil {
		t.Error("want overwritten delete to keep running")
	}

	if c.FinishDelete(first) {
		t.Error("want overwritten delete reported untracked")
	}
	if !c.FinishDelete(second) {
		t.Error("want latest delete reported tracked")
	}
}

func TestCoordinator_CountSlot(t *testing.T) {
	c := NewCoordinator()

	_, task, ok := c.StartCount(context.Background())
	if !ok {
		t.Fatal("want count started")
	}
	if _, _, ok := c.StartCount(context.Background()); ok {
		t.Error("want second count rejected")
	}
	if !c.Counting() {
		t.Error("want counting while the count runs")
	}
	c.FinishCount(task)
	if c.Counting() {
		t.Error("want not counting after the count finished")
	}
	if _, _, ok := c.StartCount(context.Background()); !ok {
		t.Error("want count started after the first finished")
	}
}
