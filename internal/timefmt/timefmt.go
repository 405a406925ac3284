// Package timefmt renders timestamps in the application's display timezone.
package timefmt

import (
	"fmt"
	"time"
	_ "time/tzdata" // zone database for minimal containers
)

// DisplayLayout is the human-readable layout used in every view.
const DisplayLayout = "2006-01-02 03:04 PM"

// InputLayout is the layout of datetime-local form values.
const InputLayout = "2006-01-02T15:04"

// Zone localizes and formats times for one fixed location.
type Zone struct {
	loc *time.Location
}

// Load returns a Zone for an IANA timezone name.
func Load(name string) (*Zone, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return &Zone{loc: loc}, nil
}

// NewZone wraps an existing location.
func NewZone(loc *time.Location) *Zone {
	return &Zone{loc: loc}
}

// Location returns the underlying location.
func (z *Zone) Location() *time.Location {
	return z.loc
}

// In converts t to the zone.
func (z *Zone) In(t time.Time) time.Time {
	return t.In(z.loc)
}

// InPtr converts an optional time to the zone.
func (z *Zone) InPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	local := t.In(z.loc)
	return &local
}

// Format renders t, or fallback for a nil or zero time.
func (z *Zone) Format(t *time.Time, fallback string) string {
	if t == nil || t.IsZero() {
		return fallback
	}
	return t.In(z.loc).Format(DisplayLayout)
}

// ParseInput parses a datetime-local value as wall time in the zone.
func (z *Zone) ParseInput(raw string) (time.Time, error) {
	return time.ParseInLocation(InputLayout, raw, z.loc)
}
