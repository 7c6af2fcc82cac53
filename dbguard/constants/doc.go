// Package constant provides shared constant values used across dbguard.
//
// Keep this package free of runtime behavior.
package constant
