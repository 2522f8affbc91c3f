// Package buildinfo exposes version information injected at link time:
//
//	go build -ldflags "-X github.com/yndnr/datalayer-go/internal/infra/buildinfo.Version=v1.0.0"
//
// Without ldflags, Get falls back to the module build info recorded by
// the Go toolchain.
package buildinfo
