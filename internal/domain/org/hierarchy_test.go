package org

import (
	"context"
	"errors"
	"testing"
)

type fakeDirectory struct {
	managers map[string]string
	err      error
}

func (f *fakeDirectory) ManagerID(_ context.Context, employeeID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.managers[employeeID], nil
}

func (f *fakeDirectory) EmployeeCount(_ context.Context) (int, error) {
	return len(f.managers), nil
}

func TestWouldCreateCycle(t *testing.T) {
	// c reports to b reports to a.
	dir := &fakeDirectory{managers: map[string]string{
		"a": "",
		"b": "a",
		"c": "b",
		"d": "",
	}}
	ctx := context.Background()

	tests := []struct {
		name     string
		employee string
		manager  string
		want     bool
	}{
		{"self management", "a", "a", true},
		{"direct cycle", "b", "c", true},
		{"transitive cycle", "a", "c", true},
		{"valid reassignment", "d", "c", false},
		{"no manager", "d", "", false},
		{"top of chain", "d", "a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WouldCreateCycle(ctx, dir, tt.employee, tt.manager)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("WouldCreateCycle(%s, %s) = %v, want %v", tt.employee, tt.manager, got, tt.want)
			}
		})
	}
}

func TestWouldCreateCycleCorruptGraph(t *testing.T) {
	// x and y already point at each other; walking must stop at the bound.
	dir := &fakeDirectory{managers: map[string]string{
		"x": "y",
		"y": "x",
		"z": "",
	}}
	got, err := WouldCreateCycle(context.Background(), dir, "z", "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Fatal("corrupt graph must be reported as a cycle")
	}
}

func TestWouldCreateCycleLookupError(t *testing.T) {
	dir := &fakeDirectory{
		managers: map[string]string{"a": "", "b": "a"},
		err:      errors.New("boom"),
	}
	got, err := WouldCreateCycle(context.Background(), dir, "a", "b")
	if err == nil {
		t.Fatal("expected the lookup error to propagate")
	}
	if !got {
		t.Fatal("errors must fail safe and report a cycle")
	}
}
