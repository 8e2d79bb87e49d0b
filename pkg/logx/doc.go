// Package logx is postar's structured logging: a value-type Logger over zerolog,
// and a Service whose outputs (console, JSON file, Telegram alerts) can be
// swapped at runtime.
package logx
