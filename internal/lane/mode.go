package lane

import "fmt"

// Mode is the tracker's search state.
type Mode int

const (
	ModeColdStart Mode = iota + 1
	ModeWarmStart
)

func (m Mode) String() string {
	switch m {
	case ModeColdStart:
		return "COLD_START"
	case ModeWarmStart:
		return "WARM_START"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Search identifies the pixel search that produced a frame's pixels.
type Search int

const (
	SearchHistogram Search = iota + 1
	SearchProximity
)

func (s Search) String() string {
	switch s {
	case SearchHistogram:
		return "histogram"
	case SearchProximity:
		return "proximity"
	default:
		return fmt.Sprintf("Search(%d)", int(s))
	}
}

// MarshalText encodes the search by name.
func (s Search) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
