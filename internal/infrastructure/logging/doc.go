// Package logging provides structured logging for Luma Core.
//
// Built on log/slog with JSON (production) and text (development) handlers,
// level filtering, and default service/version attributes. Components
// typically declare a narrow local Logger interface and accept this type.
//
// Usage:
//
//	log := logging.New(cfg.Logging, "lumacore", version)
//	log.Info("device updated", "id", dev.ID)
package logging
