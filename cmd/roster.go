package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Inspect class rosters",
}

var rosterCheckCmd = &cobra.Command{
	Use:   "check <class-id>",
	Short: "Check which enrolled students can be recognized",
	Long: `Build the known-face registry for a class exactly as a live session would
and report which students were included and which were skipped, with the reason.

Students are skipped when they have no reference image, the image cannot be
decoded, or the face service finds no face in it.

Examples:
  face-attendance roster check 3
  face-attendance roster check 3 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRosterCheck,
}

func init() {
	rootCmd.AddCommand(rosterCmd)
	rosterCmd.AddCommand(rosterCheckCmd)

	rosterCheckCmd.Flags().Bool("json", false, "Output as JSON")
}

// rosterCheckEntry is one line of the roster check report.
type rosterCheckEntry struct {
	StudentID int64  `json:"student_id"`
	Name      string `json:"name"`
	Included  bool   `json:"included"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
}

type rosterCheckResult struct {
	ClassID  int64              `json:"class_id"`
	Total    int                `json:"total"`
	Included int                `json:"included"`
	Skipped  int                `json:"skipped"`
	Students []rosterCheckEntry `json:"students"`
}

// buildRosterReport lists the roster in order, marking skipped entries.
func buildRosterReport(classID int64, roster []facematch.RosterEntry, reg *facematch.Registry) rosterCheckResult {
	skipped := make(map[int64]facematch.SkippedEntry)
	for _, s := range reg.Skipped() {
		skipped[s.StudentID] = s
	}

	result := rosterCheckResult{ClassID: classID, Total: len(roster), Students: make([]rosterCheckEntry, 0, len(roster))}
	for _, entry := range roster {
		row := rosterCheckEntry{StudentID: entry.StudentID, Name: entry.Name, Included: true}
		if s, ok := skipped[entry.StudentID]; ok {
			row.Included = false
			row.Reason = string(s.Reason)
			if s.Err != nil {
				row.Error = s.Err.Error()
			}
			result.Skipped++
		} else {
			result.Included++
		}
		result.Students = append(result.Students, row)
	}
	return result
}

func printRosterReport(result rosterCheckResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tREASON")
	for _, s := range result.Students {
		status := "included"
		if !s.Included {
			status = "skipped"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.StudentID, s.Name, status, s.Reason)
	}
	w.Flush()
	fmt.Printf("\n%d of %d students can be recognized\n", result.Included, result.Total)
}

func runRosterCheck(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	classID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || classID <= 0 {
		return fmt.Errorf("invalid class id %q", args[0])
	}

	ctx := context.Background()
	deps, err := initAppDeps(ctx, config.Load())
	if err != nil {
		return err
	}
	defer deps.Close()

	if _, err := deps.store.GetClass(ctx, classID); err != nil {
		return fmt.Errorf("failed to get class %d: %w", classID, err)
	}
	roster, err := rosterOf(ctx, deps.store, classID)
	if err != nil {
		return err
	}
	warnf(jsonOutput, "Building registry for %d enrolled students...\n", len(roster))

	reg, err := deps.builder.Build(ctx, roster)
	if err != nil {
		return fmt.Errorf("failed to build registry: %w", err)
	}

	result := buildRosterReport(classID, roster, reg)
	if jsonOutput {
		return outputJSON(result)
	}
	printRosterReport(result)
	return nil
}
