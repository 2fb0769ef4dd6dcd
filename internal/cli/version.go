package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

type versionInfo struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
	Go      string `json:"go" yaml:"go"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		info := versionInfo{Version: Version, Commit: Commit, Date: Date, Go: runtime.Version()}
		if IsStructuredOutput() {
			return WriteOutput(cmd.OutOrStdout(), info)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remotectl %s (commit %s, built %s, %s)\n", info.Version, info.Commit, info.Date, info.Go)
		return nil
	},
}
