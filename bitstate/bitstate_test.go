package bitstate

import "testing"

func TestToggleIsItsOwnInverse(t *testing.T) {
	for x := 0; x < 256; x++ {
		for m := 0; m < 256; m++ {
			w, mask := Word(x), Word(m)
			if got := Toggle(Toggle(w, mask), mask); got != w {
				t.Fatalf("Toggle(Toggle(%s, %s)) = %s", w, mask, got)
			}
		}
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name string
		fn   func(Word, Word) Word
		w, m Word
		want Word
	}{
		{"set adds bits", Set, 0b00000001, 0b00000010, 0b00000011},
		{"set is idempotent", Set, 0b00000011, 0b00000010, 0b00000011},
		{"clear removes bits", Clear, 0b10000011, 0b00000010, 0b10000001},
		{"clear ignores unset bits", Clear, 0b00000001, 0b00000100, 0b00000001},
		{"toggle flips", Toggle, 0b00001111, 0b00010000, 0b00011111},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.w, tt.m); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMatchPredicates(t *testing.T) {
	tests := []struct {
		w                         Word
		lobby, inProgress, ended bool
	}{
		{0b00000001, true, false, false},
		{0b00000011, false, true, false},
		{0b00000111, false, true, false},
		{0b10000011, false, false, true},
		{0b10000001, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.w.String(), func(t *testing.T) {
			if got := InLobby(tt.w); got != tt.lobby {
				t.Errorf("InLobby = %v", got)
			}
			if got := InProgress(tt.w); got != tt.inProgress {
				t.Errorf("InProgress = %v", got)
			}
			if got := Ended(tt.w); got != tt.ended {
				t.Errorf("Ended = %v", got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	w, err := Parse(PlayerHasDelivered.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if w != 0b00111111 {
		t.Fatalf("got %s", w)
	}
	if _, err := Parse("102"); err == nil {
		t.Fatal("expected error for non-binary digit")
	}
	if _, err := Parse("111111111"); err == nil {
		t.Fatal("expected error for nine digits")
	}
}
