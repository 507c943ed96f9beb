package railbind

import "fmt"

// Notification identifies one kind of driver-originated event.
// Each kind has exactly one subscription slot on a Binding.
type Notification int

const (
	NotifyBeforeOpen Notification = iota
	NotifyAfterOpen
	NotifyBeforeClose
	NotifyAfterClose
	NotifyBeforeStart
	NotifyAfterStart
	NotifyBeforeStop
	NotifyAfterStop
	NotifyError
	NotifyLog
	NotifyInputChanged
	NotifyOutputChanged
	NotifyScanned

	NotificationCount
)

var notificationNames = [NotificationCount]string{
	"before-open", "after-open", "before-close", "after-close",
	"before-start", "after-start", "before-stop", "after-stop",
	"error", "log", "input-changed", "output-changed", "scanned",
}

func (n Notification) String() string {
	if n < 0 || n >= NotificationCount {
		return fmt.Sprintf("notification(%d)", int(n))
	}
	return notificationNames[n]
}

// Driver log levels, as delivered by the log notification and accepted
// by SetLogLevel/SetLogLevelFile.
const (
	LogDebug = 0
	LogInfo  = 1
	LogWarn  = 2
	LogError = 3
)

// LogEvent is the payload of a log notification.
type LogEvent struct {
	Message string
	Level   int
}

// ErrorEvent is the payload of an asynchronous error notification.
// It is informational only and never replaces the failure result of a
// call in flight.
type ErrorEvent struct {
	Message string
	Code    int
	Address int
}

// PortState is the observable state of one input or output port.
// Failed and NotScanned are legitimate observations, not call errors:
// a module that failed or has not been scanned yet is still a valid
// thing to look at.
type PortState uint8

const (
	StateOff PortState = iota
	StateOn
	StateFailed
	StateNotScanned
)

func (s PortState) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateOn:
		return "on"
	case StateFailed:
		return "failed"
	case StateNotScanned:
		return "not-scanned"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// PortReading is the result of reading one port. Value holds the raw
// driver code and is only meaningful when State is StateOff or StateOn.
type PortReading struct {
	Value int
	State PortState
}

// Memory is read access to a driver's linear memory, used by the event
// bridge to pull string payloads out of notification deliveries.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
}
