package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/cli/render"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// TableHeaders implements render.Tabular.
func (r VersionResponse) TableHeaders() []string { return []string{"VERSION", "COMMIT"} }

// TableRows implements render.Tabular.
func (r VersionResponse) TableRows() [][]string {
	return [][]string{{r.Version, r.Commit}}
}

// VersionCommand returns the version command. Both binaries share one
// version (lockstep versioning).
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  OutputFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}
		return r.Render(VersionResponse{Version: Version, Commit: commit})
	}
}
