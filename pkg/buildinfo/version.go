// Package buildinfo holds the taggraph release stamp.
//
// Release builds inject the values with the linker:
//
//	go build -ldflags "-X github.com/isia-imav/taggraph/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/isia-imav/taggraph/pkg/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	    -X github.com/isia-imav/taggraph/pkg/buildinfo.Date=$(date -u +%Y-%m-%d)" ./cmd/taggraph
//
// Local builds report "dev".
package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Template is the cobra version template printed by taggraph --version.
func Template() string {
	return fmt.Sprintf("{{.Name}} %s (commit %s, built %s)\n", Version, Commit, Date)
}
