//go:build debug

package tag

// Debug is true in builds made with -tags debug.
const Debug = true
