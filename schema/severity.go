package schema

import (
	"fmt"
	"strings"
)

// Severity is the normalized log level used to filter queries and label entries.
type Severity int

// SeverityDefault marks entries whose source carried no level.
const (
	SeverityDefault Severity = iota
	SeverityDebug
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityDefault:  "default",
	SeverityDebug:    "debug",
	SeverityInfo:     "info",
	SeverityWarning:  "warning",
	SeverityError:    "error",
	SeverityCritical: "critical",
}

// ParseSeverity maps a provider or user supplied level name to a Severity.
// Names are case-insensitive and common aliases (warn, fatal) are accepted.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return SeverityDefault, nil
	case "debug", "trace":
		return SeverityDebug, nil
	case "info", "informational", "notice":
		return SeverityInfo, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "error", "err":
		return SeverityError, nil
	case "critical", "fatal", "alert", "emergency":
		return SeverityCritical, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", name)
	}
}

// Valid reports whether s is one of the defined levels.
func (s Severity) Valid() bool {
	_, ok := severityNames[s]
	return ok
}

// AtLeast reports whether s is as severe as min or more.
func (s Severity) AtLeast(min Severity) bool {
	return s >= min
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
