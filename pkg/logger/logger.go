package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/noah-isme/learnupon-exporter/pkg/config"
)

const (
	VerbosityQuiet   = 0
	VerbosityDefault = 1
	VerbosityInfo    = 2
	VerbosityDebug   = 3
)

// Level maps the CLI verbosity (0-3) onto a zap level.
func Level(verbosity int) zapcore.Level {
	switch {
	case verbosity <= VerbosityQuiet:
		return zapcore.ErrorLevel
	case verbosity == VerbosityDefault:
		return zapcore.WarnLevel
	case verbosity == VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// New builds the process logger writing to stderr. Standard output is kept for
// operator progress lines.
func New(cfg config.LogConfig, verbosity int) *zap.Logger {
	return NewWithWriter(cfg, verbosity, os.Stderr)
}

// NewWithWriter builds a logger writing to w. Below debug verbosity the console
// format is LEVEL|message; debug prints name|timestamp|LEVEL|message.
func NewWithWriter(cfg config.LogConfig, verbosity int, w io.Writer) *zap.Logger {
	encCfg := zapcore.EncoderConfig{
		MessageKey:       "message",
		LevelKey:         "level",
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: "|",
	}
	if verbosity >= VerbosityDebug {
		encCfg.TimeKey = "timestamp"
		encCfg.NameKey = "logger"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encCfg.EncodeName = zapcore.FullNameEncoder
	}

	var encoder zapcore.Encoder
	switch {
	case cfg.Format == "json":
		encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	case verbosity >= VerbosityDebug:
		// the console encoder always puts time before level and name, so
		// name and time are written by the wrapper instead
		encCfg.TimeKey = ""
		encCfg.NameKey = ""
		encoder = prefixEncoder{Encoder: zapcore.NewConsoleEncoder(encCfg)}
	default:
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), zap.NewAtomicLevelAt(Level(verbosity)))
	return zap.New(core).Named("learnupon_exporter")
}

const timestampLayout = "2006-01-02T15:04:05.000Z0700"

var pool = buffer.NewPool()

// prefixEncoder writes name|timestamp| ahead of each console line.
type prefixEncoder struct {
	zapcore.Encoder
}

func (e prefixEncoder) Clone() zapcore.Encoder {
	return prefixEncoder{Encoder: e.Encoder.Clone()}
}

func (e prefixEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line, err := e.Encoder.EncodeEntry(ent, fields)
	if err != nil {
		return nil, err
	}
	defer line.Free()

	out := pool.Get()
	out.AppendString(ent.LoggerName)
	out.AppendByte('|')
	out.AppendString(ent.Time.Format(timestampLayout))
	out.AppendByte('|')
	_, _ = out.Write(line.Bytes())
	return out, nil
}
