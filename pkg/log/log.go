// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package log provides a global logger for the process, wrapping zap. Both
// the fast sugar-free logger and the sugared logger are available.
package log

import (
	stdlog "log"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GlobalConfig defines the global logger configurations.
type GlobalConfig struct {
	Zap                *zap.Config `json:"zap" yaml:"zap"`
	StderrRedirectFile *string     `json:"stderrRedirectFile" yaml:"stderrRedirectFile"`
	RedirectStdLog     bool        `json:"stdLogRedirect" yaml:"stdLogRedirect"`
}

var (
	_globalLogger *zap.Logger
	_subLoggers   map[string]*zap.Logger
	_logMu        sync.RWMutex
)

func init() {
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zapCfg.Level.SetLevel(zap.InfoLevel)
	l, err := zapCfg.Build()
	if err != nil {
		stdlog.Panic("Failed to init zap global logger, no zap log will be shown till zap is properly initialized: ", err)
	}
	_logMu.Lock()
	_globalLogger = l
	_subLoggers = make(map[string]*zap.Logger)
	_logMu.Unlock()
}

// L wraps zap global logger.
func L() *zap.Logger {
	_logMu.RLock()
	l := _globalLogger
	_logMu.RUnlock()
	return l
}

// S wraps zap sugared global logger.
func S() *zap.SugaredLogger { return L().Sugar() }

// Logger returns the logger of the given name, or the global logger if the
// name was never initialized.
func Logger(name string) *zap.Logger {
	_logMu.RLock()
	defer _logMu.RUnlock()
	if l, ok := _subLoggers[name]; ok {
		return l
	}
	return _globalLogger
}

// InitLoggers initializes the global logger and other sub loggers.
func InitLoggers(globalCfg GlobalConfig, subCfgs map[string]GlobalConfig, opts ...zap.Option) error {
	gl, err := buildLogger(globalCfg, opts...)
	if err != nil {
		return err
	}
	subs := make(map[string]*zap.Logger, len(subCfgs))
	for name, cfg := range subCfgs {
		l, err := buildLogger(cfg, opts...)
		if err != nil {
			return err
		}
		subs[name] = l.With(zap.String("subLogger", name))
	}

	_logMu.Lock()
	_globalLogger = gl
	_subLoggers = subs
	_logMu.Unlock()

	if globalCfg.RedirectStdLog {
		zap.RedirectStdLog(gl)
	}
	zap.ReplaceGlobals(gl)
	return nil
}

func buildLogger(cfg GlobalConfig, opts ...zap.Option) (*zap.Logger, error) {
	zapCfg := cfg.Zap
	if zapCfg == nil {
		c := zap.NewProductionConfig()
		zapCfg = &c
	}
	if cfg.StderrRedirectFile != nil {
		zapCfg.ErrorOutputPaths = append(zapCfg.ErrorOutputPaths, *cfg.StderrRedirectFile)
	}
	return zapCfg.Build(opts...)
}
