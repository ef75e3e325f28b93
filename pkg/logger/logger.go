package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config логгера. Level: debug|info|warn|error.
type Config struct {
	Service string
	Level   string
	Debug   bool
}

// New строит *zap.Logger с полем service. Логгер раздаётся компонентам
// через конструкторы — никакого глобального мутабельного состояния.
func New(conf Config) (*zap.Logger, error) {
	var cfg zap.Config
	if conf.Debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	if conf.Level != "" {
		lvl, err := zapcore.ParseLevel(conf.Level)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	service := conf.Service
	if service == "" {
		service = "default"
	}
	return log.With(zap.String("service", service)), nil
}
