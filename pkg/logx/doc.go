// Package logx wraps zerolog behind a small value-type Logger with
// runtime-swappable sinks. The zero value is a safe no-op.
package logx
