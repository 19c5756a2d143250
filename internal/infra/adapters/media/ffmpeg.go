package media

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"vidscribe/internal/domain/ports/adapter"
	"vidscribe/internal/infra/adapters/cmdrun"
)

var (
	_ adapter.Normalizer  = (*FFmpeg)(nil)
	_ adapter.AudioSlicer = (*FFmpeg)(nil)
)

// FFmpeg normalizes and cuts audio with ffmpeg and probes it with ffprobe.
type FFmpeg struct {
	ffmpeg     string
	ffprobe    string
	sampleRate int
	runner     cmdrun.Runner
}

func NewFFmpeg(ffmpeg, ffprobe string, sampleRate int, runner cmdrun.Runner) *FFmpeg {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if runner == nil {
		runner = cmdrun.Exec{}
	}
	return &FFmpeg{ffmpeg: ffmpeg, ffprobe: ffprobe, sampleRate: sampleRate, runner: runner}
}

// pcmArgs are the output settings of every file this adapter writes.
func (f *FFmpeg) pcmArgs() []string {
	return []string{"-vn", "-ac", "1", "-ar", strconv.Itoa(f.sampleRate), "-c:a", "pcm_s16le"}
}

// Normalize writes audio.wav next to the input: mono 16-bit PCM at the
// configured sample rate.
func (f *FFmpeg) Normalize(ctx context.Context, inputPath string) (string, error) {
	out := filepath.Join(filepath.Dir(inputPath), "audio.wav")
	args := append([]string{"-hide_banner", "-loglevel", "error", "-nostdin", "-y", "-i", inputPath}, f.pcmArgs()...)
	args = append(args, out)
	if _, err := f.runner.Run(ctx, f.ffmpeg, args...); err != nil {
		return "", err
	}
	return out, nil
}

// Duration probes the container duration of path.
func (f *FFmpeg) Duration(ctx context.Context, path string) (time.Duration, error) {
	res, err := f.runner.Run(ctx, f.ffprobe,
		"-v", "error", "-show_entries", "format=duration", "-of", "json", path)
	if err != nil {
		return 0, err
	}
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(res.Stdout), &probe); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	secs, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", probe.Format.Duration, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Slice writes [start, start+length) of path to destPath.
func (f *FFmpeg) Slice(ctx context.Context, path, destPath string, start, length time.Duration) error {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin", "-y",
		"-ss", seconds(start), "-t", seconds(length),
		"-i", path,
	}
	args = append(args, f.pcmArgs()...)
	args = append(args, destPath)
	_, err := f.runner.Run(ctx, f.ffmpeg, args...)
	return err
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
