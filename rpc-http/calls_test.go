package rpchttp

import (
	"errors"
	"testing"
)

func TestCallRegistryNewCall(t *testing.T) {
	r := NewCallRegistry()
	call, err := r.NewCall(2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if call.CallID != 2 || call.OpNum != 0 {
		t.Errorf("call = %+v", call)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
	if _, err := r.NewCall(2, 0); !errors.Is(err, ErrDuplicateCall) {
		t.Errorf("expected ErrDuplicateCall, got %v", err)
	}
}

func TestCallRegistryEnsureCall(t *testing.T) {
	r := NewCallRegistry()
	first, err := r.EnsureCall(2, 0)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.EnsureCall(2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("EnsureCall re-registered an existing call id")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestCallRegistryComplete(t *testing.T) {
	r := NewCallRegistry()
	if _, err := r.NewCall(2, 0); err != nil {
		t.Fatal(err)
	}
	if err := r.Complete(2); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after completion, want 0", r.Len())
	}
	if err := r.Complete(2); !errors.Is(err, ErrUnknownCall) {
		t.Errorf("expected ErrUnknownCall, got %v", err)
	}
	if err := r.Complete(99); !errors.Is(err, ErrUnknownCall) {
		t.Errorf("expected ErrUnknownCall, got %v", err)
	}
}

func TestCallRegistryOutstandingOrder(t *testing.T) {
	r := NewCallRegistry()
	for _, id := range []uint32{5, 2, 9} {
		if _, err := r.NewCall(id, 0); err != nil {
			t.Fatal(err)
		}
	}
	got := r.Outstanding()
	want := []uint32{5, 2, 9}
	for k := range want {
		if got[k] != want[k] {
			t.Fatalf("Outstanding = %v, want %v", got, want)
		}
	}
	if err := r.Complete(2); err != nil {
		t.Fatal(err)
	}
	got = r.Outstanding()
	want = []uint32{5, 9}
	if len(got) != 2 || got[0] != 5 || got[1] != 9 {
		t.Errorf("Outstanding after completion = %v, want %v", got, want)
	}
}

func TestCallRegistryClear(t *testing.T) {
	r := NewCallRegistry()
	r.NewCall(1, 0)
	r.NewCall(2, 0)
	r.Clear()
	if r.Len() != 0 {
		t.Errorf("Len = %d after Clear, want 0", r.Len())
	}
	if len(r.Outstanding()) != 0 {
		t.Errorf("Outstanding not empty after Clear")
	}
	if _, err := r.NewCall(1, 0); err != nil {
		t.Errorf("NewCall after Clear: %v", err)
	}
}
