// Package version reports filterkit build information.
//
// Version, git commit, branch, and build time are set at compile time
// via -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/filterkit/version.Version=1.0.0" ./cmd/filterkit
//
// Values not set by the linker fall back to the VCS data the Go toolchain
// embeds.
package version
