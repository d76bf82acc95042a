// Package video decodes recorded lectures into RGBA frames with ffmpeg and
// samples them for face recognition.
package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// StreamInfo describes the first video stream of a file as ffmpeg will decode it.
type StreamInfo struct {
	Width  int
	Height int
	// Frames is the container's frame count estimate, 0 when unknown.
	Frames int
}

type probeResult struct {
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	NBFrames     string            `json:"nb_frames"`
	Tags         map[string]string `json:"tags"`
	SideDataList []struct {
		Rotation int `json:"rotation"`
	} `json:"side_data_list"`
}

// Probe runs ffprobe against path and returns the decoded frame geometry.
func Probe(ctx context.Context, binary, path string) (StreamInfo, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return StreamInfo{}, errors.New("ffprobe: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-select_streams", "v:0", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return StreamInfo{}, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return StreamInfo{}, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(output)
}

// parseProbe extracts the first video stream from ffprobe JSON output.
// Width and height are swapped for streams rotated by 90 degrees because
// ffmpeg autorotates decoded frames.
func parseProbe(output []byte) (StreamInfo, error) {
	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return StreamInfo{}, fmt.Errorf("ffprobe parse: %w", err)
	}

	for _, s := range result.Streams {
		if !strings.EqualFold(s.CodecType, "video") {
			continue
		}
		if s.Width <= 0 || s.Height <= 0 {
			return StreamInfo{}, fmt.Errorf("ffprobe: invalid video dimensions %dx%d", s.Width, s.Height)
		}
		info := StreamInfo{Width: s.Width, Height: s.Height}
		if n, err := strconv.Atoi(strings.TrimSpace(s.NBFrames)); err == nil && n > 0 {
			info.Frames = n
		}
		if quarterTurn(s.rotation()) {
			info.Width, info.Height = info.Height, info.Width
		}
		return info, nil
	}
	return StreamInfo{}, errors.New("ffprobe: no video stream")
}

func (s probeStream) rotation() int {
	for _, sd := range s.SideDataList {
		if sd.Rotation != 0 {
			return sd.Rotation
		}
	}
	if r, err := strconv.Atoi(s.Tags["rotate"]); err == nil {
		return r
	}
	return 0
}

func quarterTurn(deg int) bool {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg == 90 || deg == 270
}
