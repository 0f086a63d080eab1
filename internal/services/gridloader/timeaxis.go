package gridloader

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/bbernstein/weathervis-go/pkg/geo"
)

const timeVariable = "time"

// timeUnits maps CF time units to durations.
var timeUnits = map[string]time.Duration{
	"s":       time.Second,
	"sec":     time.Second,
	"secs":    time.Second,
	"second":  time.Second,
	"seconds": time.Second,
	"min":     time.Minute,
	"mins":    time.Minute,
	"minute":  time.Minute,
	"minutes": time.Minute,
	"h":       time.Hour,
	"hr":      time.Hour,
	"hrs":     time.Hour,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"d":       24 * time.Hour,
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
}

// timeAxis is the decoded 1-D time coordinate of a source.
type timeAxis struct {
	Unit      time.Duration
	Reference time.Time
	Values    []float64
}

// Span returns max - min of the axis.
func (a timeAxis) Span() time.Duration {
	if len(a.Values) == 0 {
		return 0
	}
	lo, hi := a.Values[0], a.Values[0]
	for _, v := range a.Values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return time.Duration((hi - lo) * float64(a.Unit))
}

// readTimeAxis validates the time variable of ds: it must be 1-D, carry the
// CF standard name "time" and units of the form "<unit> since <date>".
func readTimeAxis(ds Dataset, source string) (timeAxis, error) {
	v, ok := ds.Variable(timeVariable)
	if !ok {
		return timeAxis{}, &geo.VariableError{Variable: timeVariable, Source: source}
	}
	if len(v.Shape) != 1 {
		return timeAxis{}, &TimeAxisError{Variable: timeVariable, Reason: "Must be 1D."}
	}
	if name := v.StringAttr("standard_name"); name != "time" {
		return timeAxis{}, &TimeAxisError{
			Variable: timeVariable,
			Reason:   fmt.Sprintf("Unrecognized standard_name %q.", name),
		}
	}

	unitName, since, found := strings.Cut(strings.TrimSpace(v.StringAttr("units")), " since ")
	unit, known := timeUnits[strings.ToLower(strings.TrimSpace(unitName))]
	if !found || !known {
		return timeAxis{}, &TimeAxisError{
			Variable: timeVariable,
			Reason:   fmt.Sprintf("Unrecognized units %q.", v.StringAttr("units")),
		}
	}
	ref, err := dateparse.ParseIn(strings.TrimSpace(since), time.UTC)
	if err != nil {
		return timeAxis{}, &TimeAxisError{
			Variable: timeVariable,
			Reason:   fmt.Sprintf("Invalid reference date %q.", since),
		}
	}
	return timeAxis{Unit: unit, Reference: ref.UTC(), Values: v.Values}, nil
}

// parseDate parses a free-form date in UTC.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &DateError{Value: s, Err: fmt.Errorf("empty date")}
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, &DateError{Value: s, Err: err}
	}
	return t.UTC(), nil
}
