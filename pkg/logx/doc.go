// Package logx provides the bot's structured logging on top of zerolog.
//
// It exposes a small Logger value type with functional fields, plus a
// Service that owns the sinks (console, file, Telegram mirror) and supports
// hot re-configuration: loggers handed out earlier keep writing to whatever
// sinks the latest Apply() configured.
package logx
