package core

// Logger is implemented by any logging service used across the app.
// Implementations may inspect args for well-known types (eg. the acting user)
// and report them to an external error tracker.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
