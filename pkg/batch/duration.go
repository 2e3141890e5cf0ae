package batch

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Duration is a time.Duration that travels as an ISO 8601 duration
// ("PT10M", "P1DT2H"), the form the Batch API uses for intervals.
type Duration time.Duration

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// String formats d as an ISO 8601 duration.
func (d Duration) String() string {
	td := time.Duration(d)
	if td <= 0 {
		return "PT0S"
	}

	days := td / (24 * time.Hour)
	td -= days * 24 * time.Hour
	hours := td / time.Hour
	td -= hours * time.Hour
	minutes := td / time.Minute
	td -= minutes * time.Minute

	var b strings.Builder
	b.WriteString("P")
	if days > 0 {
		fmt.Fprintf(&b, "%dD", days)
	}
	if hours == 0 && minutes == 0 && td == 0 {
		return b.String()
	}
	b.WriteString("T")
	if hours > 0 {
		fmt.Fprintf(&b, "%dH", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%dM", minutes)
	}
	if td > 0 {
		b.WriteString(strconv.FormatFloat(td.Seconds(), 'f', -1, 64))
		b.WriteString("S")
	}
	return b.String()
}

// ParseDuration parses an ISO 8601 duration limited to days, hours,
// minutes and (fractional) seconds.
func ParseDuration(s string) (Duration, error) {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil || s == "P" || strings.HasSuffix(s, "T") {
		return 0, fmt.Errorf("batch: invalid ISO 8601 duration %q", s)
	}

	var total time.Duration
	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute}
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("batch: invalid ISO 8601 duration %q: %w", s, err)
		}
		total += time.Duration(n) * unit
	}
	if m[4] != "" {
		secs, err := strconv.ParseFloat(m[4], 64)
		if err != nil {
			return 0, fmt.Errorf("batch: invalid ISO 8601 duration %q: %w", s, err)
		}
		total += time.Duration(math.Round(secs * float64(time.Second)))
	}
	return Duration(total), nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
