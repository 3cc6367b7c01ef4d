package sequencer

import "testing"

func TestNextIDsIncrement(t *testing.T) {
	t.Parallel()
	s := New(0, 0, 0)

	if id := s.NextOrderID(); id != 1 {
		t.Errorf("first NextOrderID = %d, want 1", id)
	}
	if id := s.NextOrderID(); id != 2 {
		t.Errorf("second NextOrderID = %d, want 2", id)
	}
	if id := s.NextTradeID(); id != 1 {
		t.Errorf("first NextTradeID = %d, want 1", id)
	}
	if id := s.NextOperationLogID(); id != 1 {
		t.Errorf("first NextOperationLogID = %d, want 1", id)
	}
}

func TestResetFromWatermarks(t *testing.T) {
	t.Parallel()
	s := New(10, 20, 30)
	s.Reset(100, 200, 300)

	if id := s.NextOrderID(); id != 201 {
		t.Errorf("NextOrderID after reset = %d, want 201", id)
	}
	op, order, trade := s.Watermarks()
	if op != 100 || order != 201 || trade != 300 {
		t.Errorf("Watermarks = (%d,%d,%d), want (100,201,300)", op, order, trade)
	}
}

func TestNeverRepeats(t *testing.T) {
	t.Parallel()
	s := New(0, 0, 0)
	seen := make(map[uint64]bool)
	for i := 0; i < 1000; i++ {
		id := s.NextOrderID()
		if seen[id] {
			t.Fatalf("order id %d repeated", id)
		}
		seen[id] = true
	}
}
