package cleanup

import "testing"

func TestTimeUntilNextMidnightUTCIsWithinADay(t *testing.T) {
	d := timeUntilNextMidnightUTC()
	if d <= 0 || d > dayInterval {
		t.Fatalf("timeUntilNextMidnightUTC() = %v, want (0, 24h]", d)
	}
}
