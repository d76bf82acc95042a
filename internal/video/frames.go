package video

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"
)

// ErrTruncatedFrame is returned when the decoder output ends mid-frame.
var ErrTruncatedFrame = errors.New("truncated video frame")

// FrameReader yields decoded frames in order.
// ReadFrame and SkipFrame return io.EOF after the last frame.
type FrameReader interface {
	ReadFrame() (image.Image, error)
	SkipFrame() error
	// FrameCount is an estimate of the total number of frames, 0 when unknown.
	FrameCount() int
	Close() error
}

// Opener opens a video file for frame-by-frame reading.
type Opener func(ctx context.Context, path string) (FrameReader, error)

// FFmpeg decodes video files by piping raw RGBA frames out of ffmpeg.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
}

// Open probes the file and starts the decoder.
func (f FFmpeg) Open(ctx context.Context, path string) (FrameReader, error) {
	info, err := Probe(ctx, f.FFprobePath, path)
	if err != nil {
		return nil, err
	}

	binary := strings.TrimSpace(f.FFmpegPath)
	if binary == "" {
		binary = "ffmpeg"
	}
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-map", "0:v:0",
		"-an", "-sn", "-dn",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}

	fr := &processReader{cmd: cmd, stderr: &stderr}
	fr.raw = newRawReader(stdout, info.Width, info.Height, info.Frames, fr.wait)
	return fr, nil
}

// processReader owns the ffmpeg process behind a rawReader.
type processReader struct {
	raw    *rawReader
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	waited bool
}

func (p *processReader) ReadFrame() (image.Image, error) { return p.raw.ReadFrame() }
func (p *processReader) SkipFrame() error                { return p.raw.SkipFrame() }
func (p *processReader) FrameCount() int                 { return p.raw.FrameCount() }

// wait reaps the process once stdout is drained; a non-zero exit is an error.
func (p *processReader) wait() error {
	if p.waited {
		return nil
	}
	p.waited = true
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg decode: %w: %s", err, strings.TrimSpace(p.stderr.String()))
	}
	return nil
}

// Close stops the decoder if it is still running.
func (p *processReader) Close() error {
	if p.waited {
		return nil
	}
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	p.waited = true
	_ = p.cmd.Wait()
	return nil
}

// rawReader splits a stream of packed RGBA pixels into frames.
type rawReader struct {
	r         *bufio.Reader
	width     int
	height    int
	frameSize int
	frames    int
	scratch   []byte
	// finish is called at end of stream and may turn EOF into an error.
	finish func() error
}

func newRawReader(r io.Reader, width, height, frames int, finish func() error) *rawReader {
	if finish == nil {
		finish = func() error { return nil }
	}
	return &rawReader{
		r:         bufio.NewReaderSize(r, 1<<20),
		width:     width,
		height:    height,
		frameSize: width * height * 4,
		frames:    frames,
		finish:    finish,
	}
}

func (rr *rawReader) fill(dst []byte) error {
	_, err := io.ReadFull(rr.r, dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		if ferr := rr.finish(); ferr != nil {
			return errors.Join(ErrTruncatedFrame, ferr)
		}
		return ErrTruncatedFrame
	case errors.Is(err, io.EOF):
		if ferr := rr.finish(); ferr != nil {
			return ferr
		}
		return io.EOF
	default:
		return fmt.Errorf("read frame: %w", err)
	}
}

// ReadFrame returns the next frame as a freshly allocated RGBA image.
func (rr *rawReader) ReadFrame() (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, rr.width, rr.height))
	if err := rr.fill(img.Pix); err != nil {
		return nil, err
	}
	return img, nil
}

// SkipFrame consumes the next frame without building an image.
func (rr *rawReader) SkipFrame() error {
	if rr.scratch == nil {
		rr.scratch = make([]byte, rr.frameSize)
	}
	return rr.fill(rr.scratch)
}

func (rr *rawReader) FrameCount() int { return rr.frames }

func (rr *rawReader) Close() error { return nil }
