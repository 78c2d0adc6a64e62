package conversation

import (
	"testing"
	"time"
)

func TestTimeFromMach(t *testing.T) {
	tests := []struct {
		mach     int64
		expected string
	}{
		{0, "2001-01-01T00:00:00Z"},
		{1, "2001-01-01T00:00:01Z"},
		{378691200, "2013-01-01T00:00:00Z"},
	}

	for _, test := range tests {
		got := timeFromMach(test.mach)
		if got.Format(time.RFC3339) != test.expected {
			t.Errorf("timeFromMach(%d) = %s, want %s", test.mach, got.Format(time.RFC3339), test.expected)
		}
		if got.Location() != time.UTC {
			t.Errorf("timeFromMach(%d) should be UTC", test.mach)
		}
	}
}
