// Package logger builds the *slog.Logger shared by every sessionkit component
// and provides attribute helpers so that keys stay consistent across packages.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "stockly"),
//	    logger.WithLevelName(cfg.LogLevel),
//	)
//	log.Info("login succeeded",
//	    logger.Component("session"),
//	    logger.UserID(user.ID),
//	)
//
// Components accept a logger through their own options and fall back to
// Discard when none is given.
//
// # Error Handling
//
// Error returns an empty attribute for nil errors, so calls like
//
//	log.Warn("clear failed", logger.Error(err))
//
// need no extra nil check.
package logger
