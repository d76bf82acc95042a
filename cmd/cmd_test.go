package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

func TestBuildRosterReport(t *testing.T) {
	roster := []facematch.RosterEntry{
		{StudentID: 1, Name: "Ana"},
		{StudentID: 2, Name: "Bruno"},
	}
	// Entries without an image are skipped without calling the face service.
	reg, err := (&facematch.RegistryBuilder{}).Build(context.Background(), roster)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	result := buildRosterReport(7, roster, reg)

	if result.ClassID != 7 || result.Total != 2 || result.Included != 0 || result.Skipped != 2 {
		t.Errorf("unexpected totals: %+v", result)
	}
	for i, s := range result.Students {
		if s.StudentID != roster[i].StudentID || s.Included || s.Reason != string(facematch.SkipNoImage) {
			t.Errorf("unexpected entry %d: %+v", i, s)
		}
	}
}

func TestDescribeBoutError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{attendance.ErrBoutNotFound, "bout 4 not found"},
		{fmt.Errorf("wrapped: %w", attendance.ErrSessionEnded), "bout 4 has already ended"},
		{errors.New("ffmpeg exited"), "failed to process video: ffmpeg exited"},
	}

	for _, tc := range tests {
		if got := describeBoutError(4, tc.err).Error(); got != tc.want {
			t.Errorf("describeBoutError(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestResolveServeHostPort(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().Int("port", 8080, "")
	cmd.Flags().String("host", "0.0.0.0", "")

	t.Setenv("WEB_PORT", "")
	t.Setenv("WEB_HOST", "")
	port, host := resolveServeHostPort(cmd)
	if port != 8080 || host != "0.0.0.0" {
		t.Errorf("defaults = %d %s", port, host)
	}

	t.Setenv("WEB_PORT", "9090")
	t.Setenv("WEB_HOST", "127.0.0.1")
	port, host = resolveServeHostPort(cmd)
	if port != 9090 || host != "127.0.0.1" {
		t.Errorf("env overrides = %d %s", port, host)
	}
}

func TestMustGetPanicsOnUnknownFlag(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil || !strings.Contains(fmt.Sprint(r), "--missing") {
			t.Errorf("expected panic naming the flag, got %v", r)
		}
	}()
	mustGetInt(&cobra.Command{}, "missing")
}

func TestCommandsRegistered(t *testing.T) {
	for _, path := range [][]string{{"serve"}, {"roster", "check"}, {"video", "process"}, {"version"}} {
		found, _, err := rootCmd.Find(path)
		if err != nil || found.Name() != path[len(path)-1] {
			t.Errorf("command %v not registered: %v", path, err)
		}
	}
}
