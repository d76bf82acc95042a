package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		rc := config.Load().Recognition
		fmt.Printf("face-attendance %s (%s)\n", Version, runtime.Version())
		fmt.Printf("  Commit: %s\n", CommitSHA)
		fmt.Printf("  Built:  %s\n", BuildDate)
		fmt.Printf("  Model:  %s (%s, tolerance %.2f)\n", rc.EmbeddingModel, rc.Metric, rc.Tolerance)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
