package workflow

import "fmt"

// Status selects which view variant is rendered.
type Status int

const (
	// Idle: nothing selected.
	Idle Status = iota
	// Ready: an image is selected and can be submitted.
	Ready
	// Processing: exactly one extraction request is in flight.
	Processing
	// Success: the result for the selected image is available.
	Success
	// Error: the last request failed; no result is shown.
	Error
)

var statusNames = [...]string{"idle", "ready", "processing", "success", "error"}

func (s Status) String() string {
	if s < Idle || s > Error {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText renders the lower-case status name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DragEvent is a pointer event over the drop target.
type DragEvent int

const (
	DragEnter DragEvent = iota
	DragOver
	DragLeave
	Drop
)

// ParseDragEvent maps "enter", "over", "leave" and "drop" to a DragEvent.
func ParseDragEvent(s string) (DragEvent, error) {
	switch s {
	case "enter", "dragenter":
		return DragEnter, nil
	case "over", "dragover":
		return DragOver, nil
	case "leave", "dragleave":
		return DragLeave, nil
	case "drop":
		return Drop, nil
	}
	return 0, fmt.Errorf("unknown drag event %q", s)
}
