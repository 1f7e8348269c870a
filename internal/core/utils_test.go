package core

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"2024-07-15", "2024-07-15", false},
		{"2023-01-01", "2023-01-01", false},
		{"invalid", "", true},
		{"07/15/2024", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseDate(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got.Format(DateFmt) != tt.want {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got.Format(DateFmt), tt.want)
			}
		})
	}
}

func TestParseDateSpec(t *testing.T) {
	now := time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"today", "today", "2024-07-15", false},
		{"yesterday", "yesterday", "2024-07-14", false},
		{"exact date", "2024-01-03", "2024-01-03", false},
		{"relative d-7", "d-7", "2024-07-08", false},
		{"relative w-1", "w-1", "2024-07-08", false},
		{"relative m-1", "m-1", "2024-06-15", false},
		{"invalid", "invalid", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDateSpec(tt.input, now)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseDateSpec(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got.Format(DateFmt) != tt.want {
				t.Errorf("ParseDateSpec(%q) = %v, want %v", tt.input, got.Format(DateFmt), tt.want)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
		err   bool
	}{
		{"7d", 7 * 24 * time.Hour, false},
		{"30s", 30 * time.Second, false},
		{"2h30m", 2*time.Hour + 30*time.Minute, false},
		{"nope", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.input)
		if tt.err {
			if err == nil {
				t.Errorf("ParseDuration(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, %v; want %v", tt.input, got, err, tt.want)
		}
	}
}

func TestDateOnlyKeepsCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	// 2024-07-15 01:00 in UTC+9 is still 2024-07-14 in UTC.
	local := time.Date(2024, 7, 15, 1, 0, 0, 0, loc)
	if got := FormatDate(DateOnly(local)); got != "2024-07-15" {
		t.Errorf("DateOnly = %s, want 2024-07-15", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{"short", 10, "short"},
		{"this is a long string", 10, "this is..."},
		{"abcd", 3, "abc"},
		{"", 5, ""},
		{"こんにちは世界です", 5, "こん..."},
	}
	for _, tt := range tests {
		if got := Truncate(tt.input, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
		}
	}
}
