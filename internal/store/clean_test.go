package store

import "testing"

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Отличный телефон", "Отличный телефон"},
		{"emoji stripped", "Супер 👍🔥 камера", "Супер камера"},
		{"repeats collapse to two", "Класссссс", "Класс"},
		{"double letters survive", "Аккумулятор хороший", "Аккумулятор хороший"},
		{"whitespace collapses", "много   пробелов\n\tи табов", "много пробелов и табов"},
		{"trailing punctuation trimmed", "Рекомендую...; ", "Рекомендую"},
		{"only junk", " ...;; ", ""},
		{"empty", "", ""},
		{"exclamation run", "Ужас!!!!!", "Ужас!!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.in); got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCollapseRepeatsRuneSafe(t *testing.T) {
	// Multi-byte runes must collapse by rune, not by byte.
	if got := collapseRepeats("ооооочень"); got != "оочень" {
		t.Errorf("collapseRepeats = %q", got)
	}
}
