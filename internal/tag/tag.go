// Package tag exposes build tags the binary was built with.
package tag
