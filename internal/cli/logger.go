package cli

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds the supervisor logger. Entries go to stderr so stdout
// carries only the bot's mirrored output.
func newLogger(globals *Globals) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(globals.Level)
	if err != nil {
		return nil, err
	}
	if globals.Verbose {
		level = zap.DebugLevel
	} else if globals.Quiet && level < zap.WarnLevel {
		level = zap.WarnLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if globals.JSON() {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(globals.Stderr), zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.ErrorOutput(zapcore.AddSync(globals.Stderr))), nil
}
