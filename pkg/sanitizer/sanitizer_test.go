package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"only spaces", "   ", ""},
		{"leading and trailing", "  Mumbai  ", "Mumbai"},
		{"internal run", "New   Delhi", "New Delhi"},
		{"tabs and newlines", "Navi\t\nMumbai", "Navi Mumbai"},
		{"already clean", "Pune", "Pune"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimAndNormalize(tt.input); got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeTruckType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"flatbed", "FLATBED"},
		{"  container-20ft ", "CONTAINER-20FT"},
		{"Open  Body", "OPEN BODY"},
	}

	for _, tt := range tests {
		if got := NormalizeTruckType(tt.input); got != tt.want {
			t.Errorf("NormalizeTruckType(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
