package sanitizer

import "testing"

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "spaces become underscores",
			input: "Rock Climbing",
			want:  "rock_climbing",
		},
		{
			name:  "hyphens become underscores",
			input: "intro-to-pottery",
			want:  "intro_to_pottery",
		},
		{
			name:  "collapse repeated separators",
			input: "  Hot -- Yoga  ",
			want:  "hot_yoga",
		},
		{
			name:  "digits kept",
			input: "Studio 4B",
			want:  "studio_4b",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only separators",
			input: " -- _ ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeLabel(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeLabel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercases and trims",
			input: "  Dana@Example.COM ",
			want:  "dana@example.com",
		},
		{
			name:  "rejects missing domain",
			input: "dana@",
			want:  "",
		},
		{
			name:  "rejects display name form",
			input: "Dana <dana@example.com>",
			want:  "",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeEmail(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeEmail(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "trim spaces",
			input: "  Dana Levi  ",
			want:  "Dana Levi",
		},
		{
			name:  "tabs and newlines",
			input: "Dana\t\nLevi",
			want:  "Dana Levi",
		},
		{
			name:  "only whitespace",
			input: "   \t\n  ",
			want:  "",
		},
		{
			name:  "preserve special characters",
			input: " Café & Spa™ ",
			want:  "Café & Spa™",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeName(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
