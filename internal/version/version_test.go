package version

import (
	"strings"
	"testing"
)

func setBuildDate(t *testing.T, date string) {
	t.Helper()
	old := BuildDate
	BuildDate = date
	t.Cleanup(func() { BuildDate = old })
}

func TestCalculateBuildID(t *testing.T) {
	cases := map[string]struct {
		date      string
		want      int
		wantError bool
	}{
		"epoch date":          {date: "2025-12-04", want: 0},
		"next day":            {date: "2025-12-05", want: 1},
		"one year later":      {date: "2026-12-04", want: 365},
		"through a leap year": {date: "2032-12-04", want: 2557},
		"invalid format":      {date: "invalid", wantError: true},
		"empty date":          {date: "", wantError: true},
		"before epoch":        {date: "2025-12-03", wantError: true},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			setBuildDate(t, tc.date)

			got, err := CalculateBuildID()
			if tc.wantError {
				if err == nil {
					t.Fatalf("expected error, got id=%d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("CalculateBuildID() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestStringWithUnknownBuild(t *testing.T) {
	setBuildDate(t, "")

	s := String()
	if !strings.HasPrefix(s, "Build unknown") {
		t.Errorf("String() = %q, want 'Build unknown' prefix", s)
	}
}

func TestStringWithKnownBuild(t *testing.T) {
	setBuildDate(t, "2025-12-14")

	s := String()
	if !strings.HasPrefix(s, "boardgame-server build 10 ") {
		t.Errorf("String() = %q, want build 10 prefix", s)
	}
	if !strings.Contains(s, "ci[local]") {
		t.Errorf("String() = %q, want ci[local] fallback", s)
	}
}
