package utils

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig - настройки логирования
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json или text
	Output string // путь к файлу; пустое значение - stdout

	// Ротация файла (используется только при заданном Output)
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Development включает caller и stacktrace на уровне warn
	Development bool
}

// ParseLevel преобразует строку уровня в zapcore.Level.
// Неизвестный уровень трактуется как info.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger создает настроенный zap.Logger.
//
// При заданном Output лог пишется в файл с ротацией через lumberjack
// и дублируется в stdout, иначе - только stdout.
func InitLogger(cfg LogConfig) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "text" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	level := ParseLevel(cfg.Level)

	syncers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if cfg.Output != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 30),
			Compress:   true,
		}
		syncers = append(syncers, zapcore.AddSync(rotator))
	}

	core := zapcore.NewCore(
		encoder,
		zapcore.NewMultiWriteSyncer(syncers...),
		level,
	)

	opts := []zap.Option{}
	if cfg.Development {
		opts = append(opts,
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.WarnLevel),
			zap.Development(),
		)
	}

	return zap.New(core, opts...)
}

func orDefault(value, def int) int {
	if value <= 0 {
		return def
	}
	return value
}
