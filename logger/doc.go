// Package logger provides structured logging for the freeseek client
// using zerolog.
//
// Loggers are values passed to each component at construction; there is no
// package-level logger. Per-request correlation fields (request id, model)
// travel in the context.Context and are picked up by WithContext.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.New(&cfg, "freeseek").WithComponent("executor")
//	ctx = logger.WithRequest(ctx, requestID, "deepseek_v3")
//	log.WithContext(ctx).Info("request sent", logger.Fields("attempt", 1))
package logger
