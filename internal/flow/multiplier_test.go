package flow

import "testing"

func TestCalculator_Multiplier(t *testing.T) {
	c := NewCalculator(DefaultBrackets())

	tests := []struct {
		name      string
		sender    int64
		recipient int64
		want      int64
	}{
		{"recipient richer", 100, 500, 100},
		{"equal balances", 300, 300, 100},
		{"ratio 20 lands in top bracket", 1000, 50, 150},
		{"ratio exactly 10 ties upward", 500, 50, 150},
		{"ratio just under 10", 499, 50, 130},
		{"ratio exactly 5 ties upward", 250, 50, 130},
		{"ratio between 2 and 5", 200, 50, 115},
		{"ratio exactly 2 ties upward", 100, 50, 115},
		{"ratio under 2", 99, 50, 105},
		{"barely richer sender", 51, 50, 105},
		{"zero recipient clamps divisor to 1", 10, 0, 150},
		{"zero recipient, small sender", 1, 0, 105},
		{"both zero", 0, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Multiplier(tt.sender, tt.recipient)
			if got != tt.want {
				t.Errorf("Multiplier(%d, %d) = %d, want %d", tt.sender, tt.recipient, got, tt.want)
			}
		})
	}
}

// For a fixed recipient balance the multiplier must never decrease as
// the sender's balance grows, and must be exactly 100 whenever the
// recipient is at least as rich.
func TestCalculator_Monotonic(t *testing.T) {
	c := NewCalculator(DefaultBrackets())

	for _, recipient := range []int64{0, 1, 7, 50, 1000} {
		prev := int64(0)
		for sender := int64(0); sender <= 12000; sender += 13 {
			m := c.Multiplier(sender, recipient)
			if recipient >= sender && m != 100 {
				t.Fatalf("Multiplier(%d, %d) = %d, want 100 for richer recipient", sender, recipient, m)
			}
			if m < prev {
				t.Fatalf("multiplier regressed at sender=%d recipient=%d: %d < %d", sender, recipient, m, prev)
			}
			prev = m
		}
	}
}

func TestCreditedAndSkim(t *testing.T) {
	// Worked example: 1000 vs 50 at base 100.
	c := NewCalculator(DefaultBrackets())
	m := c.Multiplier(1000, 50)
	if got := Credited(100, m); got != 150 {
		t.Errorf("Credited(100, %d) = %d, want 150", m, got)
	}
	if got := Skim(100, 200); got != 2 {
		t.Errorf("Skim(100, 200) = %d, want 2", got)
	}
	// Floors, never rounds.
	if got := Credited(33, 115); got != 37 { // 37.95
		t.Errorf("Credited(33, 115) = %d, want 37", got)
	}
	if got := Skim(49, 200); got != 0 {
		t.Errorf("Skim(49, 200) = %d, want 0", got)
	}
}
