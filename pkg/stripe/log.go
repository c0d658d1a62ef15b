package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
)

// leveledLogger routes stripe-go request logs into the service logger.
// stripe-go logs without a request context, so entries carry only the
// service fields.
type leveledLogger struct {
	logg *logger.Logger
}

func (l leveledLogger) Debugf(format string, v ...any) {
	if l.logg != nil {
		l.logg.Debug(l.ctx(), fmt.Sprintf(format, v...))
	}
}

func (l leveledLogger) Infof(format string, v ...any) {
	if l.logg != nil {
		l.logg.Debug(l.ctx(), fmt.Sprintf(format, v...))
	}
}

func (l leveledLogger) Warnf(format string, v ...any) {
	if l.logg != nil {
		l.logg.Warn(l.ctx(), fmt.Sprintf(format, v...))
	}
}

func (l leveledLogger) Errorf(format string, v ...any) {
	if l.logg != nil {
		msg := fmt.Sprintf(format, v...)
		l.logg.Error(l.ctx(), "stripe request failed", errors.New(msg))
	}
}

func (l leveledLogger) ctx() context.Context {
	return l.logg.WithField(context.Background(), "component", "stripe")
}
