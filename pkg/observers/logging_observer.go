// Package observers provides observers for monitoring the intersection
// scheduler and the process table
package observers

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/anggasct/rendezvous/pkg/core"
)

// LogLevel represents the logging level
type LogLevel int

const (
	// LogError logs only errors
	LogError LogLevel = iota
	// LogWarning logs errors and warnings
	LogWarning
	// LogInfo logs errors, warnings, and info
	LogInfo
	// LogDebug logs errors, warnings, info, and debug
	LogDebug
)

// LoggingObserver logs scheduler and process table events
type LoggingObserver struct {
	level     LogLevel
	prefix    string
	mutex     sync.RWMutex
	formatter LogFormatter
	out       io.Writer
}

// LogFormatter formats log messages
type LogFormatter func(level LogLevel, format string, args ...interface{}) string

// DefaultLogFormatter provides default log formatting
func DefaultLogFormatter(level LogLevel, format string, args ...interface{}) string {
	levelStr := "INFO"
	switch level {
	case LogError:
		levelStr = "ERROR"
	case LogWarning:
		levelStr = "WARN"
	case LogInfo:
		levelStr = "INFO"
	case LogDebug:
		levelStr = "DEBUG"
	}

	return fmt.Sprintf("[%s] %s", levelStr, fmt.Sprintf(format, args...))
}

// NewLoggingObserver creates a new logging observer writing to stdout
func NewLoggingObserver(level LogLevel, prefix string) *LoggingObserver {
	return &LoggingObserver{
		level:     level,
		prefix:    prefix,
		formatter: DefaultLogFormatter,
		out:       os.Stdout,
	}
}

// SetFormatter sets the log formatter
func (o *LoggingObserver) SetFormatter(formatter LogFormatter) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.formatter = formatter
}

// SetOutput sets the destination of log lines
func (o *LoggingObserver) SetOutput(w io.Writer) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.out = w
}

// log logs a message at the specified level
func (o *LoggingObserver) log(level LogLevel, format string, args ...interface{}) {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	if level <= o.level {
		prefix := ""
		if o.prefix != "" {
			prefix = fmt.Sprintf("[%s] ", o.prefix)
		}

		message := ""
		if o.formatter != nil {
			message = o.formatter(level, format, args...)
		} else {
			message = fmt.Sprintf(format, args...)
		}

		fmt.Fprintf(o.out, "%s%s\n", prefix, message)
	}
}

// OnArrive logs a vehicle arrival
func (o *LoggingObserver) OnArrive(origin, destination core.Direction) {
	o.log(LogDebug, "Vehicle arrived: %s -> %s", origin, destination)
}

// OnWait logs a vehicle that has to queue
func (o *LoggingObserver) OnWait(origin core.Direction, waiting int) {
	o.log(LogDebug, "Vehicle from %s waiting (%d queued)", origin, waiting)
}

// OnEnter logs a vehicle entering the intersection
func (o *LoggingObserver) OnEnter(origin, destination core.Direction) {
	o.log(LogDebug, "Vehicle entered: %s -> %s", origin, destination)
}

// OnLeave logs a vehicle leaving the intersection
func (o *LoggingObserver) OnLeave(origin, destination core.Direction, remaining int) {
	o.log(LogDebug, "Vehicle left: %s -> %s (%d remaining)", origin, destination, remaining)
}

// OnAdmit logs a batch admission
func (o *LoggingObserver) OnAdmit(direction core.Direction, batch int) {
	o.log(LogInfo, "Admitting %s: batch of %d", direction, batch)
}

// OnIdle logs the intersection becoming idle
func (o *LoggingObserver) OnIdle() {
	o.log(LogInfo, "Intersection idle")
}

// OnRegister logs a new process
func (o *LoggingObserver) OnRegister(pid, parent core.PID) {
	o.log(LogInfo, "Process %d registered (parent %d)", pid, parent)
}

// OnZombie logs a process waiting to be collected
func (o *LoggingObserver) OnZombie(pid core.PID, exitCode int) {
	o.log(LogInfo, "Process %d exited with code %d", pid, exitCode)
}

// OnReap logs a removed process entry
func (o *LoggingObserver) OnReap(pid core.PID, reason core.ReapReason) {
	level := LogInfo
	if reason == core.ReapAborted {
		level = LogWarning
	}
	o.log(level, "Process %d reaped (%s)", pid, reason)
}

// OnWaitBlocked logs a caller sleeping in wait
func (o *LoggingObserver) OnWaitBlocked(pid, caller core.PID) {
	o.log(LogDebug, "Process %d waiting for %d", caller, pid)
}

// OnError logs errors
func (o *LoggingObserver) OnError(err error) {
	o.log(LogError, "Error: %v", err)
}
