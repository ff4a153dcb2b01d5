// Package log is the structured logger every peerchan component receives
// through its constructor.
//
// Entries are built through log/slog and rendered by a Formatter (JSON or
// text) to one or more Outputs. Components derive scoped loggers:
//
//	l := log.NewLogger(log.WithLevel(log.InfoLevel), log.WithFormatter(&log.TextFormatter{}))
//	store := l.WithComponent("msgbox")
//	store.Debug("wrote message", log.Uint64("seq", 7), log.Int("recipients", 2))
//
// The HTTP layer stores the request id and account with ContextWithRequest;
// WithContext turns them into request_id and account_id fields.
//
// ApplyConfig builds a logger from the server's log settings. WithRedaction
// masks sensitive keys such as bearer tokens, and RedirectStdLog routes the
// standard library logger (used by net/http and grpc) through a Logger.
package log
