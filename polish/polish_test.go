package polish

import "testing"

func TestPolishAppliesLongestMatchFirst(t *testing.T) {
	p := New([]Rule{
		{Variant: "wifi", Preferred: "Wi-Fi"},
		{Variant: "wifi router", Preferred: "Wi-Fi router device"},
	}, nil)

	out, err := p.Polish("my wifi router is slow")
	if err != nil {
		t.Fatalf("polish: %v", err)
	}
	if out != "my Wi-Fi router device is slow" {
		t.Fatalf("expected longest-match rule to win, got %q", out)
	}
}

func TestPolishProtectsFormulaSpans(t *testing.T) {
	p := New([]Rule{{Variant: "energy", Preferred: "power"}}, nil)
	out, err := p.Polish(`the energy equation $E = energy \cdot c^2$ holds`)
	if err != nil {
		t.Fatalf("polish: %v", err)
	}
	if out != `the power equation $E = energy \cdot c^2$ holds` {
		t.Fatalf("expected formula span untouched, got %q", out)
	}
}

func TestPolishProtectsNames(t *testing.T) {
	p := New([]Rule{{Variant: "smith", Preferred: "jones"}}, []string{"Smith"})
	out, err := p.Polish("Dr. Smith studies smith theory")
	if err != nil {
		t.Fatalf("polish: %v", err)
	}
	if out != "Dr. Smith studies jones theory" {
		t.Fatalf("expected protected name preserved, got %q", out)
	}
}

func TestPolishIsIdempotent(t *testing.T) {
	p := New([]Rule{{Variant: "colour", Preferred: "color"}}, nil)
	ok, err := p.Idempotent("the colour of the sky")
	if err != nil {
		t.Fatalf("idempotent check: %v", err)
	}
	if !ok {
		t.Fatal("expected polish to be idempotent")
	}
}

func TestPolishRejectsWhenFormulaCountChanges(t *testing.T) {
	// A rule that happens to rewrite text into something that looks like a
	// new inline formula span changes the post-restore formula count and
	// must be rejected.
	p := New([]Rule{{Variant: "price", Preferred: "$cost$"}}, nil)
	_, err := p.Polish("the price is high")
	if err == nil {
		t.Fatal("expected formula-count-changed rejection")
	}
	if _, ok := err.(ErrFormulaCountChanged); !ok {
		t.Fatalf("expected ErrFormulaCountChanged, got %T", err)
	}
}
