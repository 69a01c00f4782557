package monitoring

import "log"

// Logf is the package-level diagnostic logger used by the bridge. It defaults
// to log.Printf but may be replaced by SetLogger so tests can capture or mute
// output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf logs through Logf with a warning marker so dropped writes and other
// recovered faults stand out in the device log.
func Warnf(format string, v ...interface{}) {
	Logf("⚠️ "+format, v...)
}

// Errorf logs through Logf with an error marker.
func Errorf(format string, v ...interface{}) {
	Logf("❌ "+format, v...)
}
