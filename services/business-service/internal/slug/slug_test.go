package slug

import "testing"

func TestMake(t *testing.T) {
	cases := map[string]string{
		"Bella's Hair Studio":   "bella-s-hair-studio",
		"  Café  Crème  ":       "cafe-creme",
		"Zürich Spa & Wellness": "zurich-spa-wellness",
		"24/7 Fitness":          "24-7-fitness",
		"---":                   "business",
		"":                      "business",
	}
	for in, want := range cases {
		if got := Make(in); got != want {
			t.Errorf("Make(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNext(t *testing.T) {
	if got := Next("salon", nil); got != "salon" {
		t.Fatalf("expected salon, got %s", got)
	}
	if got := Next("salon", []string{"salon"}); got != "salon-2" {
		t.Fatalf("expected salon-2, got %s", got)
	}
	if got := Next("salon", []string{"salon", "salon-2", "salon-3", "salon-5"}); got != "salon-4" {
		t.Fatalf("expected salon-4, got %s", got)
	}
}
