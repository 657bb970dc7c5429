//go:build debug

package tag

// Debug is true in builds with extra runtime invariant checks.
const Debug = true
