package version

import "testing"

func TestFormat(t *testing.T) {
	tests := []struct {
		rev   string
		dirty bool
		want  string
	}{
		{"", false, "v1.0.0"},
		{"abc", false, "v1.0.0 (abc)"},
		{"0123456789abcdef", true, "v1.0.0 (0123456789ab-dirty)"},
	}
	for _, tc := range tests {
		if got := format("v1.0.0", tc.rev, tc.dirty); got != tc.want {
			t.Errorf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestStringStartsWithVersion(t *testing.T) {
	if got := String(); len(got) < len(Version) || got[:len(Version)] != Version {
		t.Errorf("expected %q to start with %q", got, Version)
	}
}
