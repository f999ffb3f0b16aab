package shared

// Level is the severity of a user-facing notice.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Notifier surfaces transient messages to the user.
type Notifier interface {
	Notify(level Level, msg string)
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(Level, string)

func (f NotifierFunc) Notify(l Level, msg string) { f(l, msg) }

// Discard is a [Notifier] that drops everything.
var Discard Notifier = NotifierFunc(func(Level, string) {})
