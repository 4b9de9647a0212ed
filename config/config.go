// config.go - ambient configuration fuer die Graph-Execution-Core
//
// Dieses Modul enthaelt:
// - Var: liest eine Environment-Variable (getrimmt, ohne Anfuehrungszeichen)
// - BoolWithDefault/Bool: Boolean-Getter mit Default-Wert
// - Uint: Integer-Getter mit Default-Wert
// - Die NETCORE_* Environment-Variablen, die als Defaults fuer
//   Net.Options und die Argumente von extractor.New dienen, falls der
//   Aufrufer sie nicht programmatisch ueberschreibt.
package config

import (
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Var reads an environment variable, trimmed of surrounding whitespace
// and quotes.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// BoolWithDefault returns a function that reads a bool with a default value.
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				slog.Warn("invalid environment variable, using default", "key", k, "value", s)
				return defaultValue
			}
			return b
		}
		return defaultValue
	}
}

// Bool returns a function that reads a bool, defaulting to false.
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// Uint returns a function that reads a uint with a default value.
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

var (
	// LightMode is the default eviction policy for new extractors.
	LightMode = Bool("NETCORE_LIGHT_MODE")

	// GPU enables the GPU backend path when the current process has one registered.
	GPU = Bool("NETCORE_GPU")

	// Winograd enables the Winograd convolution optimization toggle.
	Winograd = BoolWithDefault("NETCORE_WINOGRAD")

	// SGEMM enables the sgemm dispatch path for InnerProduct-like layers.
	SGEMM = BoolWithDefault("NETCORE_SGEMM")

	// Int8 enables int8 quantized kernel dispatch where a layer supports it.
	Int8 = Bool("NETCORE_INT8")

	// NumThreads is the default CPU worker count; 0 means "use runtime.NumCPU()".
	NumThreads = Uint("NETCORE_NUM_THREADS", 0)

	// Debug reads NETCORE_DEBUG. No package in this module consults it;
	// the slog level is left unchanged.
	Debug = Bool("NETCORE_DEBUG")
)

// ResolvedThreads returns NumThreads(), falling back to runtime.NumCPU()
// when unset.
func ResolvedThreads() int {
	if n := NumThreads(); n > 0 {
		return int(n)
	}
	return runtime.NumCPU()
}
