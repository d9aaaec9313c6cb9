package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/rapor/internal/api"
	"github.com/jackzampolin/rapor/version"
)

type versionInfo struct {
	Release string `json:"release" yaml:"release"`
	Commit  string `json:"commit,omitempty" yaml:"commit,omitempty"`
	Date    string `json:"date,omitempty" yaml:"date,omitempty"`
	Go      string `json:"go" yaml:"go"`
}

func (v versionInfo) String() string {
	s := "rapor " + v.Release
	if v.Commit != "" {
		s += fmt.Sprintf(" (%s %s)", v.Commit, v.Date)
	}
	return s + "\n" + v.Go
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return api.Output(versionInfo{
			Release: version.GitRelease,
			Commit:  version.GitCommit,
			Date:    version.GitCommitDate,
			Go:      version.GoInfo,
		})
	},
}
