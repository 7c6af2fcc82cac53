// Package log defines the structured logging interface shared by every dbguard
// component, together with typed fields and a no-op implementation.
//
// Backends (see the zap package) implement Logger; components accept a Logger
// by injection and fall back to NopLogger when none is given.
package log
