package logger

import "sync"

// named caches component loggers derived from the global logger. Init and
// SetGlobalLogger clear it so later lookups pick up the new configuration.
var named sync.Map // component name -> *Logger

// Get returns the logger for a component: the one set with Register, or
// the global logger tagged with name.
func Get(name string) *Logger {
	if l, ok := named.Load(name); ok {
		return l.(*Logger)
	}
	l, _ := named.LoadOrStore(name, GetGlobalLogger().WithComponent(name))
	return l.(*Logger)
}

// Register pins the logger Get returns for name until the global logger
// is replaced.
func Register(name string, l *Logger) {
	named.Store(name, l)
}

func resetNamed() { named.Clear() }
