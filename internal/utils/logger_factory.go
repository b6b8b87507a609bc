package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logLevelDebugStringConstant          = "debug"
	logLevelInfoStringConstant           = "info"
	logLevelWarnStringConstant           = "warn"
	logLevelErrorStringConstant          = "error"
	logFormatStructuredStringConstant    = "structured"
	logFormatConsoleStringConstant       = "console"
	jsonZapEncodingStringConstant        = "json"
	consoleZapEncodingStringConstant     = "console"
	unsupportedLogLevelTemplateConstant  = "unsupported log level: %s"
	unsupportedLogFormatTemplateConstant = "unsupported log format: %s"
	defaultLogFileMaxSizeConstant        = 10
	defaultLogFileMaxBackupsConstant     = 3
	defaultLogFileMaxAgeDaysConstant     = 28
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Exported log level constants for reuse across packages.
const (
	LogLevelDebug LogLevel = LogLevel(logLevelDebugStringConstant)
	LogLevelInfo  LogLevel = LogLevel(logLevelInfoStringConstant)
	LogLevelWarn  LogLevel = LogLevel(logLevelWarnStringConstant)
	LogLevelError LogLevel = LogLevel(logLevelErrorStringConstant)
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Exported log format constants for reuse across packages.
const (
	LogFormatStructured LogFormat = LogFormat(logFormatStructuredStringConstant)
	LogFormatConsole    LogFormat = LogFormat(logFormatConsoleStringConstant)
)

// LogFileSettings describes the optional rotating log file. An empty Path
// disables file output.
type LogFileSettings struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// LoggerFactory builds zap.Logger instances with consistent configuration.
type LoggerFactory struct{}

var logLevelMapping = map[LogLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

var logFormatEncodingMapping = map[LogFormat]string{
	LogFormatStructured: jsonZapEncodingStringConstant,
	LogFormatConsole:    consoleZapEncodingStringConstant,
}

// NewLoggerFactory constructs a new logger factory.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// CreateLogger produces a zap.Logger honoring the requested log level and
// format. Entries are also appended as JSON to the rotating file described by
// fileSettings when its path is set.
func (factory *LoggerFactory) CreateLogger(requestedLogLevel LogLevel, requestedLogFormat LogFormat, fileSettings LogFileSettings) (*zap.Logger, error) {
	zapLogLevel, levelExists := logLevelMapping[requestedLogLevel]
	if !levelExists {
		return nil, fmt.Errorf(unsupportedLogLevelTemplateConstant, requestedLogLevel)
	}

	encoding, formatExists := logFormatEncodingMapping[requestedLogFormat]
	if !formatExists {
		return nil, fmt.Errorf(unsupportedLogFormatTemplateConstant, requestedLogFormat)
	}

	configuration := zap.NewProductionConfig()
	configuration.Level = zap.NewAtomicLevelAt(zapLogLevel)
	configuration.Encoding = encoding

	buildOptions := []zap.Option{}
	if fileCore, enabled := newRotatingFileCore(fileSettings, configuration.EncoderConfig, configuration.Level); enabled {
		buildOptions = append(buildOptions, zap.WrapCore(func(primaryCore zapcore.Core) zapcore.Core {
			return zapcore.NewTee(primaryCore, fileCore)
		}))
	}

	logger, buildError := configuration.Build(buildOptions...)
	if buildError != nil {
		return nil, buildError
	}

	return logger, nil
}

func newRotatingFileCore(fileSettings LogFileSettings, encoderConfiguration zapcore.EncoderConfig, level zap.AtomicLevel) (zapcore.Core, bool) {
	filePath := strings.TrimSpace(fileSettings.Path)
	if len(filePath) == 0 {
		return nil, false
	}

	rotatingWriter := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    positiveOrDefault(fileSettings.MaxSizeMB, defaultLogFileMaxSizeConstant),
		MaxBackups: positiveOrDefault(fileSettings.MaxBackups, defaultLogFileMaxBackupsConstant),
		MaxAge:     positiveOrDefault(fileSettings.MaxAgeDays, defaultLogFileMaxAgeDaysConstant),
	}
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfiguration), zapcore.AddSync(rotatingWriter), level), true
}

func positiveOrDefault(value int, defaultValue int) int {
	if value <= 0 {
		return defaultValue
	}
	return value
}
