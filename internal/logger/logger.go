// Package logger builds the zap logger shared by both commands.
package logger

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a console logger writing to w. Debug enables debug-level
// output; otherwise only warnings and errors are shown.
func New(w io.Writer, debug bool) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	level := zapcore.WarnLevel
	if debug {
		level = zapcore.DebugLevel
	} else {
		// Keep normal output free of timestamps and caller noise.
		encCfg.TimeKey = ""
		encCfg.CallerKey = ""
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(w),
		level,
	)
	return zap.New(core)
}
