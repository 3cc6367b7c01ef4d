package money

import "testing"

func TestAddSubMul(t *testing.T) {
	t.Parallel()
	a := MustFromString("1.5")
	b := MustFromString("0.25")

	if got := a.Add(b).String(); got != "1.75" {
		t.Errorf("Add = %s, want 1.75", got)
	}
	if got := a.Sub(b).String(); got != "1.25" {
		t.Errorf("Sub = %s, want 1.25", got)
	}
	if got := a.Mul(b).String(); got != "0.375" {
		t.Errorf("Mul = %s, want 0.375", got)
	}
}

func TestDivByZero(t *testing.T) {
	t.Parallel()
	a := MustFromString("10")
	_, err := a.Div(Zero)
	if err != ErrDivisionByZero {
		t.Fatalf("Div by zero error = %v, want ErrDivisionByZero", err)
	}
}

func TestRoundDP(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		n    int32
		want string
	}{
		{"1.005", 2, "1.01"},
		{"1.004", 2, "1"},
		{"-1.005", 2, "-1.01"},
		{"0.12345678", 8, "0.12345678"},
	}
	for _, c := range cases {
		got := MustFromString(c.in).RoundDP(c.n).String()
		if got != c.want {
			t.Errorf("RoundDP(%s, %d) = %s, want %s", c.in, c.n, got, c.want)
		}
	}
}

func TestComparisons(t *testing.T) {
	t.Parallel()
	a := MustFromString("5")
	b := MustFromString("7")

	if !a.LessThan(b) {
		t.Error("5 should be less than 7")
	}
	if !b.GreaterThan(a) {
		t.Error("7 should be greater than 5")
	}
	if !Zero.IsZero() {
		t.Error("Zero.IsZero() should be true")
	}
	if a.IsSignNegative() {
		t.Error("5 should not be sign-negative")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()
	d := MustFromString("123.456000")
	b, err := d.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	var out Decimal
	if err := out.UnmarshalJSON(b); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if !out.Equal(d) {
		t.Errorf("round-trip = %s, want %s", out, d)
	}
}
