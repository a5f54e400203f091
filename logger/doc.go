// Package logger provides structured logging for filterkit using zerolog.
//
// It supports JSON and console output, log level configuration, and
// component-scoped loggers with structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("lifecycle")
//	log.Info("filter initialized", logger.Fields(logger.FieldFilter, desc))
package logger
