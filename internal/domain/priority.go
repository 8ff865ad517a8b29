package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Priority ranks notifications and tasks.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 2
	PriorityHigh   Priority = 3
	PriorityUrgent Priority = 4
)

var priorityNames = map[Priority]string{
	PriorityLow:    "low",
	PriorityNormal: "normal",
	PriorityHigh:   "high",
	PriorityUrgent: "urgent",
}

// String returns the lower-case name. Out-of-range values read as "normal".
func (p Priority) String() string {
	if s, ok := priorityNames[p]; ok {
		return s
	}
	return "normal"
}

// Valid reports whether p is one of the defined levels.
func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

// ParsePriority parses a name case-insensitively.
func ParsePriority(s string) (Priority, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for p, name := range priorityNames {
		if name == want {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts the string form or the numeric level.
func (p *Priority) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := ParsePriority(s)
		if err != nil {
			return err
		}
		*p = v
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("priority must be a string or integer")
	}
	if !Priority(n).Valid() {
		return fmt.Errorf("priority %d out of range", n)
	}
	*p = Priority(n)
	return nil
}
