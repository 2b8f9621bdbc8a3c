package logger

import "go.uber.org/zap"

// zapLogger wraps a zap SugaredLogger, which doesn't take a level as part of
// the call, as a Logger. Crit is logged at zap's error level with a
// "crit" marker since zap's higher levels exit or panic.
type zapLogger struct {
	logger *zap.SugaredLogger
}

// NewZap wraps a SugaredLogger as a Logger. Level filtering is left to zap.
func NewZap(l *zap.SugaredLogger) Logger {
	return &zapLogger{logger: l}
}

func (l *zapLogger) Debug(msg string, pairs ...interface{}) { l.logger.Debugw(msg, pairs...) }
func (l *zapLogger) Info(msg string, pairs ...interface{})  { l.logger.Infow(msg, pairs...) }
func (l *zapLogger) Warn(msg string, pairs ...interface{})  { l.logger.Warnw(msg, pairs...) }
func (l *zapLogger) Error(msg string, pairs ...interface{}) { l.logger.Errorw(msg, pairs...) }
func (l *zapLogger) Crit(msg string, pairs ...interface{}) {
	l.logger.Errorw(msg, append([]interface{}{"crit", true}, pairs...)...)
}

func (l *zapLogger) With(pairs ...interface{}) Logger {
	return &zapLogger{logger: l.logger.With(pairs...)}
}
