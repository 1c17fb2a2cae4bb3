// Package logger provides structured logging utilities built on Go's standard slog package.
//
// # Basic Usage
//
//	import "github.com/dmitrymomot/lehaproxy/core/logger"
//
//	log := logger.New(
//		logger.WithDevelopment("lehaproxy"),
//		logger.WithLevel(slog.LevelDebug),
//	)
//
//	log.Info("checkpoint finalized",
//		logger.Component("reverter"),
//		logger.Checkpoint(cp.ID),
//	)
//
// # Environment Configurations
//
//	// Development: text format, debug level
//	devLogger := logger.New(logger.WithDevelopment("lehaproxy"))
//
//	// Production: JSON format, info level
//	prodLogger := logger.New(logger.WithProduction("lehaproxy"))
//
// # Attribute Helpers
//
// Helpers return an empty slog.Attr for nil/empty input so they can be passed
// unconditionally:
//
//	log.Error("rollback failed",
//		logger.Error(err),
//		logger.Checkpoint(id),
//		logger.Action("rollback"),
//	)
package logger
