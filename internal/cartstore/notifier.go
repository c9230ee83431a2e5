package cartstore

import "go.uber.org/zap"

// Notifier surfaces the outcome of cart operations to the shopper.
type Notifier interface {
	Success(message string)
	Error(message string, err error)
}

// LogNotifier reports notifications as log entries.
type LogNotifier struct {
	lg *zap.Logger
}

// NewLogNotifier creates a Notifier writing to lg.
func NewLogNotifier(lg *zap.Logger) *LogNotifier {
	return &LogNotifier{lg: lg}
}

func (n *LogNotifier) Success(message string) {
	n.lg.Info(message)
}

func (n *LogNotifier) Error(message string, err error) {
	n.lg.Warn(message, zap.Error(err))
}

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Error(string, error) {}
