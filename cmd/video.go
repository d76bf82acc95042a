package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
)

var videoCmd = &cobra.Command{
	Use:   "video",
	Short: "Process recorded class videos",
}

var videoProcessCmd = &cobra.Command{
	Use:   "process <bout-id> <video-file>",
	Short: "Record attendance for a bout from a video file",
	Long: `Decode a video with ffmpeg, run face recognition on every Nth frame and
mark every recognized student present in the bout.

Nothing is written if decoding or recognition fails part way. Use --dry-run
to only print the recognized students.

Examples:
  face-attendance video process 12 lesson.mp4
  face-attendance video process 12 lesson.mp4 --interval 15
  face-attendance video process 12 lesson.mp4 --dry-run --json`,
	Args: cobra.ExactArgs(2),
	RunE: runVideoProcess,
}

func init() {
	rootCmd.AddCommand(videoCmd)
	videoCmd.AddCommand(videoProcessCmd)

	videoProcessCmd.Flags().Int("interval", 0, "Match every Nth frame (default from VIDEO_SAMPLE_INTERVAL)")
	videoProcessCmd.Flags().Bool("dry-run", false, "Recognize students without writing attendance")
	videoProcessCmd.Flags().Bool("json", false, "Output as JSON")
}

// videoProcessResult is the command output.
type videoProcessResult struct {
	BoutID             int64   `json:"bout_id"`
	RecognizedStudents []int64 `json:"recognized_students"`
	TotalRecognized    int     `json:"total_recognized"`
	NewRecords         int     `json:"new_records"`
	FramesRead         int     `json:"frames_read"`
	FramesSampled      int     `json:"frames_sampled"`
	FacesDetected      int     `json:"faces_detected"`
	DryRun             bool    `json:"dry_run"`
	Duration           string  `json:"duration"`
}

// newFrameProgress returns a progress callback that lazily creates the bar once the total is known.
func newFrameProgress() (func(read, total int), func()) {
	var bar *progressbar.ProgressBar
	update := func(read, total int) {
		if bar == nil {
			size := total
			if size <= 0 {
				size = -1
			}
			bar = progressbar.NewOptions(size,
				progressbar.OptionSetDescription("Reading frames"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("frames"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionFullWidth(),
			)
		}
		_ = bar.Set(read)
	}
	finish := func() {
		if bar != nil {
			_ = bar.Finish()
			fmt.Println()
		}
	}
	return update, finish
}

func runVideoProcess(cmd *cobra.Command, args []string) error {
	interval := mustGetInt(cmd, "interval")
	dryRun := mustGetBool(cmd, "dry-run")
	jsonOutput := mustGetBool(cmd, "json")

	boutID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || boutID <= 0 {
		return fmt.Errorf("invalid bout id %q", args[0])
	}
	path := args[1]
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot read video: %w", err)
	}

	ctx := context.Background()
	deps, err := initAppDeps(ctx, config.Load())
	if err != nil {
		return err
	}
	defer deps.Close()

	if !jsonOutput {
		update, finish := newFrameProgress()
		deps.sampler.Progress = update
		defer finish()
	}

	start := time.Now()
	var result videoProcessResult
	if dryRun {
		result, err = sampleOnly(ctx, deps, boutID, path, interval)
	} else {
		result, err = processAndRecord(ctx, deps, boutID, path, interval)
	}
	if err != nil {
		return err
	}
	result.BoutID = boutID
	result.DryRun = dryRun
	result.Duration = time.Since(start).Round(time.Millisecond).String()
	if result.RecognizedStudents == nil {
		result.RecognizedStudents = []int64{}
	}

	if jsonOutput {
		return outputJSON(result)
	}
	fmt.Printf("\nRecognized %d students in %d sampled frames (%d frames read, %s)\n",
		result.TotalRecognized, result.FramesSampled, result.FramesRead, result.Duration)
	for _, id := range result.RecognizedStudents {
		fmt.Printf("  student %d\n", id)
	}
	if !dryRun {
		fmt.Printf("%d new attendance records\n", result.NewRecords)
	}
	return nil
}

func processAndRecord(ctx context.Context, deps *appDeps, boutID int64, path string, interval int) (videoProcessResult, error) {
	res, err := deps.manager.ProcessVideo(ctx, boutID, path, interval)
	if err != nil {
		return videoProcessResult{}, describeBoutError(boutID, err)
	}
	return videoProcessResult{
		RecognizedStudents: res.RecognizedStudents,
		TotalRecognized:    res.TotalRecognized,
		NewRecords:         res.NewRecords,
		FramesRead:         res.Stats.FramesRead,
		FramesSampled:      res.Stats.FramesSampled,
		FacesDetected:      res.Stats.FacesDetected,
	}, nil
}

// sampleOnly runs recognition for the bout's roster without touching the ledger.
func sampleOnly(ctx context.Context, deps *appDeps, boutID int64, path string, interval int) (videoProcessResult, error) {
	bout, err := deps.store.GetBout(ctx, boutID)
	if err != nil {
		return videoProcessResult{}, fmt.Errorf("failed to get bout %d: %w", boutID, err)
	}
	roster, err := rosterOf(ctx, deps.store, bout.ClassID)
	if err != nil {
		return videoProcessResult{}, err
	}
	reg, err := deps.builder.Build(ctx, roster)
	if err != nil {
		return videoProcessResult{}, fmt.Errorf("failed to build registry: %w", err)
	}
	seen, stats, err := deps.sampler.SampleAndMatch(ctx, path, interval, reg)
	if err != nil {
		return videoProcessResult{}, fmt.Errorf("failed to process video: %w", err)
	}
	ids := seen.Sorted()
	return videoProcessResult{
		RecognizedStudents: ids,
		TotalRecognized:    len(ids),
		FramesRead:         stats.FramesRead,
		FramesSampled:      stats.FramesSampled,
		FacesDetected:      stats.FacesDetected,
	}, nil
}

func describeBoutError(boutID int64, err error) error {
	switch {
	case errors.Is(err, attendance.ErrBoutNotFound):
		return fmt.Errorf("bout %d not found", boutID)
	case errors.Is(err, attendance.ErrSessionEnded):
		return fmt.Errorf("bout %d has already ended", boutID)
	default:
		return fmt.Errorf("failed to process video: %w", err)
	}
}
