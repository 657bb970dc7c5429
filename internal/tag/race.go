//go:build race

package tag

// Race is true when built with race detector.
const Race = true
