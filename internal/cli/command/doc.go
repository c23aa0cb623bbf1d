// Package command defines the sesspool-cli commands using urfave/cli/v2.
//
//   - root.go: App, global flags, client and output helpers
//   - pool.go: pool list, show, refill, invalidate
//   - catalog.go: catalog search, item get
//   - system.go: health and readiness
//
// Every command talks to the admin API of a running sesspool-server and
// writes to the app's Writer in the format chosen by --output.
package command
