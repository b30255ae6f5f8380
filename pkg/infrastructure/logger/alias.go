package logger

import (
	"go.uber.org/zap"
)

const (
	LevelDebug = zap.DebugLevel
	LevelInfo  = zap.InfoLevel
	LevelWarn  = zap.WarnLevel
	LevelError = zap.ErrorLevel
)

var (
	String     = zap.String
	Int        = zap.Int
	Int64      = zap.Int64
	Duration   = zap.Duration
	Bool       = zap.Bool
	ErrorF     = zap.Error
	NamedError = zap.NamedError
	Any        = zap.Any
	Stringer   = zap.Stringer
)

type (
	Field = zap.Field
)
