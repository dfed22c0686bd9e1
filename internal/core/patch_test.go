package core

import (
	"encoding/json"
	"testing"
)

func TestPatchUnmarshal(t *testing.T) {
	var p struct {
		Category Patch[string] `json:"category"`
		Note     Patch[string] `json:"note"`
		Amount   Patch[int]    `json:"amount"`
	}
	if err := json.Unmarshal([]byte(`{"category":null,"amount":5}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !p.Category.IsSet() || !p.Category.IsNull() {
		t.Fatalf("null should clear category")
	}
	if p.Note.IsSet() {
		t.Fatalf("absent key should leave note unset")
	}
	if v, ok := p.Amount.Get(); !ok || v != 5 {
		t.Fatalf("expected amount 5, got %d (%v)", v, ok)
	}
}

func TestPatchApply(t *testing.T) {
	old := "old"
	target := &old

	Patch[string]{}.Apply(&target)
	if target == nil || *target != "old" {
		t.Fatalf("unset patch must not change target")
	}
	Set("new").Apply(&target)
	if target == nil || *target != "new" {
		t.Fatalf("expected new, got %v", target)
	}
	Clear[string]().Apply(&target)
	if target != nil {
		t.Fatalf("expected cleared target")
	}
}
