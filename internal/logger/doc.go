// Package logger provides the shared zap-based logging facilities.
//
// A global sugared logger is created at init time with an atomic level;
// components attach named child loggers to the context via WithName and
// use the package-level helpers (Info, WarnKV, Errorf, ...) so log calls
// pick up whatever logger the context carries.
package logger
