package logger

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var debug atomic.Bool

type Logger struct {
	*zap.Logger
}

// SetDebug switches loggers created afterwards to the development encoder.
func SetDebug(on bool) {
	debug.Store(on)
}

func (l *Logger) init() error {
	var err error
	if _, env := os.LookupEnv("NPUSTAT_DEBUG"); env || debug.Load() {
		zapConfig := zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		l.Logger, err = zapConfig.Build()
	} else {
		l.Logger, err = zap.NewProduction()
	}
	return err
}

// New takes in a package to initialize the new Logger in.
func New(pkg string) *Logger {
	log := &Logger{}
	if err := log.init(); err != nil {
		panic(err)
	}
	log.Logger = log.Logger.With(zap.String("package", pkg))
	return log
}

// Nop is for tests and callers that own the terminal.
func Nop() *Logger {
	return &Logger{zap.NewNop()}
}
