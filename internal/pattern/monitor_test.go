package pattern

import (
	"errors"
	"testing"

	"github.com/sweeney/antenna-control/internal/gpio"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		l0, l1, l2 int
		want       Code
		pair       string
	}{
		{0, 0, 0, 0, ""},
		{1, 0, 0, 1, "1-2"},
		{0, 1, 0, 2, "2-3"},
		{1, 1, 0, 3, "3-4"},
		{0, 0, 1, 4, ""},
		{1, 0, 1, 5, ""},
		{0, 1, 1, 6, ""},
		{1, 1, 1, 7, "4-1"},
	}

	for _, tt := range tests {
		got := Decode(tt.l0, tt.l1, tt.l2)
		if got != tt.want {
			t.Errorf("Decode(%d,%d,%d): got %d, want %d", tt.l0, tt.l1, tt.l2, got, tt.want)
		}
		if got.Pair() != tt.pair {
			t.Errorf("Code(%d).Pair(): got %q, want %q", got, got.Pair(), tt.pair)
		}
		if got.Valid() != (tt.pair != "") {
			t.Errorf("Code(%d).Valid(): got %v", got, got.Valid())
		}
	}
}

func TestDecodeMasksHighBits(t *testing.T) {
	if got := Decode(3, 2, 5); got != 5 {
		t.Errorf("got %d, want 5", got)
	}
}

func TestMonitorInitialState(t *testing.T) {
	m := NewMonitor(gpio.NewFakeSampler(gpio.Sample{}))
	if m.Current() != CodeUnknown {
		t.Errorf("expected CodeUnknown, got %d", m.Current())
	}

	// All-zero reading matches the initial state: no change.
	code, changed, err := m.Sample()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 0 || changed {
		t.Errorf("got (%d, %v), want (0, false)", code, changed)
	}
}

func TestMonitorNoChangeOnRepeatedSamples(t *testing.T) {
	m := NewMonitor(gpio.NewFakeSampler(gpio.Sample{L0: 1, L1: 1}))

	code, changed, err := m.Sample()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 3 || !changed {
		t.Fatalf("first sample: got (%d, %v), want (3, true)", code, changed)
	}

	for i := 0; i < 10; i++ {
		code, changed, err := m.Sample()
		if err != nil {
			t.Fatalf("sample %d: unexpected error: %v", i, err)
		}
		if code != 3 || changed {
			t.Errorf("sample %d: got (%d, %v), want (3, false)", i, code, changed)
		}
	}

	c := m.Counts()
	if c.Samples != 11 || c.Changes != 1 {
		t.Errorf("counts: got %+v", c)
	}
}

func TestMonitorChangeDetection(t *testing.T) {
	readings := []gpio.Sample{
		{L0: 1},
		{L0: 1},
		{L1: 1},
		{L0: 1, L1: 1},
		{L0: 1, L1: 1},
		{L0: 1, L1: 1, L2: 1},
		{},
		{},
		{L0: 1},
	}
	m := NewMonitor(gpio.NewFakeSampler(readings...))

	prev := CodeUnknown
	for i, r := range readings {
		want := Decode(r.L0, r.L1, r.L2)
		code, changed, err := m.Sample()
		if err != nil {
			t.Fatalf("sample %d: unexpected error: %v", i, err)
		}
		if code != want {
			t.Errorf("sample %d: code got %d, want %d", i, code, want)
		}
		if changed != (prev != want) {
			t.Errorf("sample %d: changed got %v, prev=%d curr=%d", i, changed, prev, want)
		}
		if m.Current() != want {
			t.Errorf("sample %d: stored got %d, want %d", i, m.Current(), want)
		}
		prev = want
	}
}

func TestMonitorReadErrorKeepsState(t *testing.T) {
	f := gpio.NewFakeSampler(gpio.Sample{L1: 1})
	m := NewMonitor(f)

	if _, _, err := m.Sample(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.SetReadError(errors.New("gpio fault"))
	code, changed, err := m.Sample()
	if err == nil {
		t.Fatal("expected error")
	}
	if code != 2 || changed {
		t.Errorf("on error: got (%d, %v), want (2, false)", code, changed)
	}

	f.SetReadError(nil)
	_, changed, err = m.Sample()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Error("recovery with same reading should not report a change")
	}

	if c := m.Counts(); c.ReadErrors != 1 || c.Samples != 2 {
		t.Errorf("counts: got %+v", c)
	}
}
