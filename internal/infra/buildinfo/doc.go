// Package buildinfo reports the version of the running binary.
//
// Release builds inject values with ldflags:
//
//	go build -ldflags "-X github.com/yndnr/sesspool-go/internal/infra/buildinfo.Version=v1.0.0 \
//	  -X github.com/yndnr/sesspool-go/internal/infra/buildinfo.Commit=$(git rev-parse --short HEAD)"
//
// Without ldflags, the commit and build time fall back to the VCS stamp
// the go command embeds, and the Go version to the running toolchain.
package buildinfo
