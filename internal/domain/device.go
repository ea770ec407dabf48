package domain

import (
	"fmt"
	"strings"
)

type DeviceType string

const (
	DeviceTypeOutlet DeviceType = "outlet"
	DeviceTypeBulb   DeviceType = "bulb"
)

// Record is one entry of the device registry. Fields holds every scalar
// property of the JSON object rendered as text, including the ones mapped
// above.
type Record struct {
	ID      string
	IP      string
	Key     string
	Type    DeviceType
	Version string
	Fields  map[string]string
}

// Matches reports whether any field value equals selector, ignoring case.
func (r Record) Matches(selector string) bool {
	for _, v := range r.Fields {
		if strings.EqualFold(v, selector) {
			return true
		}
	}
	return false
}

// Validate checks the fields needed to reach the device.
func (r Record) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"id", r.ID},
		{"ip", r.IP},
		{"key", r.Key},
		{"type", string(r.Type)},
		{"ver", r.Version},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteRecord, strings.Join(missing, ", "))
	}

	switch r.Type {
	case DeviceTypeOutlet, DeviceTypeBulb:
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrIncompleteRecord, r.Type)
	}
}

const (
	DPSSwitch     = "1"
	DPSBulbSwitch = "20"
)

// Status is the decoded response of a status query.
type Status struct {
	DPS map[string]any
}

// Switch returns the power state and the data point it was read from.
// Data point "1" takes precedence over "20".
func (s Status) Switch() (on bool, dp string, ok bool) {
	for _, key := range []string{DPSSwitch, DPSBulbSwitch} {
		v, found := s.DPS[key]
		if !found {
			continue
		}
		b, isBool := v.(bool)
		if !isBool {
			continue
		}
		return b, key, true
	}
	return false, "", false
}
