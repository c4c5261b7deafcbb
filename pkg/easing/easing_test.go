package easing

import "testing"

const tolerance = 1e-9

func floatEquals(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < tolerance
}

func TestEasing_Endpoints(t *testing.T) {
	for name, fn := range registry {
		if !floatEquals(fn(0), 0) {
			t.Errorf("%s(0): got %v, want 0", name, fn(0))
		}
		if !floatEquals(fn(1), 1) {
			t.Errorf("%s(1): got %v, want 1", name, fn(1))
		}
	}
}

func TestLookup_Known(t *testing.T) {
	fn, ok := Lookup("in_out_quad")
	if !ok {
		t.Fatal("expected in_out_quad to be known")
	}
	if !floatEquals(fn(0.5), InOutQuad(0.5)) {
		t.Error("lookup returned a different function than InOutQuad")
	}
}

func TestLookup_UnknownFallsBackToLinear(t *testing.T) {
	fn, ok := Lookup("does_not_exist")
	if ok {
		t.Error("expected ok=false for unknown easing name")
	}
	if !floatEquals(fn(0.3), 0.3) {
		t.Errorf("fallback: got %v, want linear(0.3)=0.3", fn(0.3))
	}
}

func TestRandomFrom_Weighting(t *testing.T) {
	cases := []struct {
		u    float64
		want string
	}{
		{0.0, "sine"},
		{0.74, "sine"},
		{0.76, "quad"},
		{0.89, "quad"},
		{0.91, "back"},
		{0.999, "back"},
	}
	for _, c := range cases {
		got := RandomFrom(c.u)
		var gotName string
		switch {
		case floatEquals(got(0.25), InOutSine(0.25)):
			gotName = "sine"
		case floatEquals(got(0.25), InOutQuad(0.25)):
			gotName = "quad"
		case floatEquals(got(0.25), InOutBack(0.25)):
			gotName = "back"
		}
		if gotName != c.want {
			t.Errorf("RandomFrom(%v): got %s, want %s", c.u, gotName, c.want)
		}
	}
}
