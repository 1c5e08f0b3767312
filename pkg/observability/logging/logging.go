// Package logging bootstraps the process-wide zap logger every other
// package retrieves via zap.S()/zap.L().
package logging

import "go.uber.org/zap"

// Init installs a production zap logger at the given level as the global
// logger. level must be one of "debug", "info", "warn", "error"; an
// unrecognized level falls back to "info".
func Init(level string) {
	cfg := zap.NewProductionConfig()
	cfg.Level = parseLevel(level)

	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}

	zap.ReplaceGlobals(l)
}

func parseLevel(level string) zap.AtomicLevel {
	l := zap.NewAtomicLevel()
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return l
}
