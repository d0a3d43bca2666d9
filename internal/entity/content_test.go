package entity

import (
	"encoding/json"
	"testing"
)

func contentWith(t *testing.T, items ...*CartItem) *Content {
	t.Helper()
	c := NewContent()
	for _, item := range items {
		c.Put(item)
	}
	return c
}

func TestContentPutGetPull(t *testing.T) {
	item := mustItem(t, "1", "First item", 10.00, nil, 21)
	c := contentWith(t, item)

	if !c.Has(item.RowID()) {
		t.Fatalf("Has = false after Put")
	}
	if got := c.Get(item.RowID()); got != item {
		t.Fatalf("Get returned a different item")
	}
	if got := c.Pull(item.RowID()); got != item {
		t.Fatalf("Pull returned a different item")
	}
	if c.Len() != 0 {
		t.Fatalf("Len = %d after Pull", c.Len())
	}
	if got := c.Pull("missing"); got != nil {
		t.Fatalf("Pull on missing rowId = %v, want nil", got)
	}
}

func TestContentPreservesInsertionOrder(t *testing.T) {
	first := mustItem(t, "1", "First item", 10.00, nil, 21)
	second := mustItem(t, "2", "Second item", 20.00, nil, 21)
	third := mustItem(t, "3", "Third item", 30.00, nil, 21)
	c := contentWith(t, first, second, third)

	c.Pull(second.RowID())
	c.Put(second)

	want := []string{first.RowID(), third.RowID(), second.RowID()}
	got := c.RowIDs()
	for n := range want {
		if got[n] != want[n] {
			t.Fatalf("order[%d] = %s, want %s", n, got[n], want[n])
		}
	}
}

func TestContentPutRekeysAfterIdentityChange(t *testing.T) {
	item := mustItem(t, "1", "First item", 10.00, nil, 21)
	c := contentWith(t, item)
	oldRowID := item.RowID()

	c.Pull(oldRowID)
	item.SetTaxRate(9)
	c.Put(item)

	if c.Has(oldRowID) {
		t.Fatalf("stale rowId still present")
	}
	if !c.Has(item.RowID()) {
		t.Fatalf("item not reachable under its new rowId")
	}
}

func TestContentJSONRoundTrip(t *testing.T) {
	first := mustItem(t, "1", "First item", 10.00, ItemOptions{"size": "XL"}, 21)
	first.SetQuantity(2)
	second := mustItem(t, "2", "Second item", 20.00, nil, 9)
	c := contentWith(t, first, second)

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	restored := NewContent()
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if restored.Len() != 2 {
		t.Fatalf("Len = %d, want 2", restored.Len())
	}
	wantOrder := []string{first.RowID(), second.RowID()}
	gotOrder := restored.RowIDs()
	for n := range wantOrder {
		if gotOrder[n] != wantOrder[n] {
			t.Fatalf("order[%d] = %s, want %s", n, gotOrder[n], wantOrder[n])
		}
	}
	if got := restored.Get(first.RowID()); got == nil || got.Qty() != 2 {
		t.Fatalf("first item lost in round trip: %+v", got)
	}
}
