package mode

import "testing"

func TestMode(t *testing.T) {
	if !Ranked.IsValid() || !Recent.IsValid() {
		t.Fatal("expected both modes to be valid")
	}
	if Mode("hybrid").IsValid() {
		t.Error("unexpected valid mode")
	}
	if Ranked.DefaultLimit() != 20 {
		t.Errorf("ranked limit = %d, want 20", Ranked.DefaultLimit())
	}
	if Recent.DefaultLimit() != 50 {
		t.Errorf("recent limit = %d, want 50", Recent.DefaultLimit())
	}
}
