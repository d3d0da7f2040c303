package inspector

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// recorderCore is a zapcore.Core that copies entries into a Recorder.
type recorderCore struct {
	zapcore.LevelEnabler
	r      *Recorder
	fields []zapcore.Field
}

// Core returns a zap core writing into r for levels enabled by enab.
func (r *Recorder) Core(enab zapcore.LevelEnabler) zapcore.Core {
	return &recorderCore{LevelEnabler: enab, r: r}
}

// Wrap returns a logger that writes to both logger and the recorder.
func (r *Recorder) Wrap(logger *zap.Logger) *zap.Logger {
	return logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, r.Core(c))
	}))
}

func (c *recorderCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = make([]zapcore.Field, 0, len(c.fields)+len(fields))
	clone.fields = append(clone.fields, c.fields...)
	clone.fields = append(clone.fields, fields...)
	return &clone
}

func (c *recorderCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *recorderCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	entry := LogEntry{
		Time:    e.Time,
		Level:   e.Level.String(),
		Logger:  e.LoggerName,
		Message: e.Message,
	}
	if len(enc.Fields) > 0 {
		entry.Fields = enc.Fields
	}
	c.r.AddLog(entry)
	return nil
}

func (c *recorderCore) Sync() error { return nil }
