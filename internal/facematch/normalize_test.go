package facematch

import (
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
)

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Honza", "Honza"},
		{"Jiří", "Jiri"},
		{"café", "cafe"},
		{"naïve", "naive"},
		{"hello", "hello"},
		{"Žluťoučký kůň", "Zlutoucky kun"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := RemoveDiacritics(tt.input)
			if result != tt.expected {
				t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizePersonName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jan Novák", "jan novak"},
		{"jan-novak", "jan novak"},
		{"JOHN DOE", "john doe"},
		{"jan-novák", "jan novak"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := NormalizePersonName(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizePersonName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFilterProfiles(t *testing.T) {
	profiles := []database.StudentProfile{
		{StudentID: "S1", Name: "Jiří Novák"},
		{StudentID: "S2", Name: "Jana  Dvořáková"},
		{StudentID: "X-9", Name: "Petr Svoboda"},
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"S1", "S2", "X-9"}},
		{"novak", []string{"S1"}},
		{"JI", []string{"S1"}},
		{"jana dvorakova", []string{"S2"}},
		{"x 9", []string{"X-9"}},
		{"s", []string{"S1", "S2", "X-9"}},
		{"nobody", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := FilterProfiles(profiles, tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("FilterProfiles(%q) returned %d profiles, want %d", tt.query, len(got), len(tt.want))
			}
			for i, p := range got {
				if p.StudentID != tt.want[i] {
					t.Errorf("FilterProfiles(%q)[%d] = %s, want %s", tt.query, i, p.StudentID, tt.want[i])
				}
			}
		})
	}
}
