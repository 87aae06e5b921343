package pionconn

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/pion/logging"
)

// loggerFactory routes pion's leveled logs into logr. pion logs state transitions at info,
// which is debug chatter here.
type loggerFactory struct {
	logger logr.Logger
}

func newLoggerFactory(logger logr.Logger) logging.LoggerFactory {
	return loggerFactory{logger: logger.WithName("pion")}
}

func (f loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return leveledLogger{logger: f.logger.WithName(scope)}
}

type leveledLogger struct {
	logger logr.Logger
}

func (l leveledLogger) Trace(msg string) { l.logger.V(2).Info(msg) }

func (l leveledLogger) Tracef(format string, args ...any) {
	if l.logger.V(2).Enabled() {
		l.logger.V(2).Info(fmt.Sprintf(format, args...))
	}
}

func (l leveledLogger) Debug(msg string) { l.logger.V(1).Info(msg) }

func (l leveledLogger) Debugf(format string, args ...any) {
	if l.logger.V(1).Enabled() {
		l.logger.V(1).Info(fmt.Sprintf(format, args...))
	}
}

func (l leveledLogger) Info(msg string) { l.logger.V(1).Info(msg) }

func (l leveledLogger) Infof(format string, args ...any) {
	if l.logger.V(1).Enabled() {
		l.logger.V(1).Info(fmt.Sprintf(format, args...))
	}
}

func (l leveledLogger) Warn(msg string) { l.logger.Info(msg) }

func (l leveledLogger) Warnf(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l leveledLogger) Error(msg string) { l.logger.Error(nil, msg) }

func (l leveledLogger) Errorf(format string, args ...any) {
	l.logger.Error(nil, fmt.Sprintf(format, args...))
}
