// Package version reports build information for the freeseek client and
// CLI, and derives the User-Agent sent with every API request.
//
// Version, commit and build time are set at link time:
//
//	go build -ldflags "-X github.com/freeseek/freeseek-go/version.Version=1.2.0"
package version
