//go:build !integration

package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidscribe/internal/domain"
	"vidscribe/internal/infra/adapters/cmdrun"
)

type call struct {
	name string
	args []string
}

// fakeRunner records calls and delegates to run.
type fakeRunner struct {
	calls []call
	run   func(name string, args []string) (cmdrun.Result, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (cmdrun.Result, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	if f.run == nil {
		return cmdrun.Result{}, nil
	}
	return f.run(name, args)
}

func argValue(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func TestYtDlp_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("should return channel entries in order", func(t *testing.T) {
		r := &fakeRunner{run: func(string, []string) (cmdrun.Result, error) {
			return cmdrun.Result{Stdout: `{"_type":"playlist","id":"UCx","title":"Chan","entries":[
				{"_type":"url","id":"a1","title":"First","duration":61.5},
				{"_type":"playlist","id":"shorts","title":"Shorts"},
				null,
				{"_type":"url","id":"b2","title":"Second","duration":null}]}`}, nil
		}}
		info, err := NewYtDlp("yt", 0, r, testLogger()).Resolve(ctx, "https://www.youtube.com/@chan/videos")
		require.NoError(t, err)
		require.Len(t, info.Children, 2)
		assert.Equal(t, "a1", info.Children[0].ID)
		assert.Equal(t, 61.5, info.Children[0].DurationSeconds)
		assert.Equal(t, "b2", info.Children[1].ID)
		assert.Contains(t, r.calls[0].args, "--flat-playlist")
		assert.Equal(t, "yt", r.calls[0].name)
	})

	t.Run("should return a single video without children", func(t *testing.T) {
		r := &fakeRunner{run: func(string, []string) (cmdrun.Result, error) {
			return cmdrun.Result{Stdout: `{"_type":"video","id":"dQw4w9WgXcQ","title":"Song","duration":212}`}, nil
		}}
		info, err := NewYtDlp("", 0, r, testLogger()).Resolve(ctx, "https://youtu.be/dQw4w9WgXcQ")
		require.NoError(t, err)
		assert.Equal(t, "dQw4w9WgXcQ", info.ID)
		assert.Nil(t, info.Children)
	})

	t.Run("should classify failures as extraction errors", func(t *testing.T) {
		r := &fakeRunner{run: func(string, []string) (cmdrun.Result, error) {
			return cmdrun.Result{Stderr: "ERROR: Unsupported URL", ExitCode: 1}, errors.New("exit status 1")
		}}
		_, err := NewYtDlp("", 0, r, testLogger()).Resolve(ctx, "https://example.com/x")
		assert.True(t, errors.Is(err, domain.ErrExtraction))

		r.run = func(string, []string) (cmdrun.Result, error) { return cmdrun.Result{Stdout: "not json"}, nil }
		_, err = NewYtDlp("", 0, r, testLogger()).Resolve(ctx, "https://example.com/x")
		assert.True(t, errors.Is(err, domain.ErrExtraction))
	})

	t.Run("should honour the rate limit and context", func(t *testing.T) {
		y := NewYtDlp("", 0.001, &fakeRunner{run: func(string, []string) (cmdrun.Result, error) {
			return cmdrun.Result{Stdout: `{"id":"x"}`}, nil
		}}, testLogger())
		_, err := y.Resolve(ctx, "https://youtu.be/x")
		require.NoError(t, err)
		short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err = y.Resolve(short, "https://youtu.be/x")
		assert.Error(t, err)
	})
}

func TestYtDlp_Fetch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r := &fakeRunner{run: func(_ string, args []string) (cmdrun.Result, error) {
		out := strings.Replace(argValue(args, "-o"), "%(ext)s", "webm", 1)
		require.NoError(t, os.WriteFile(out, []byte("audio"), 0o644))
		return cmdrun.Result{Stdout: out + "\n"}, nil
	}}
	p, err := NewYtDlp("", 0, r, testLogger()).Fetch(ctx, "dQw4w9WgXcQ", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "source.webm"), p)
	args := r.calls[0].args
	assert.Equal(t, "bestaudio/best", argValue(args, "-f"))
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", args[len(args)-1])
}

func TestFFmpeg(t *testing.T) {
	ctx := context.Background()

	t.Run("should normalize to mono pcm at the configured rate", func(t *testing.T) {
		r := &fakeRunner{}
		out, err := NewFFmpeg("ff", "fp", 16000, r).Normalize(ctx, "/w/v1/source.webm")
		require.NoError(t, err)
		assert.Equal(t, "/w/v1/audio.wav", out)
		args := r.calls[0].args
		assert.Equal(t, "ff", r.calls[0].name)
		assert.Equal(t, "1", argValue(args, "-ac"))
		assert.Equal(t, "16000", argValue(args, "-ar"))
		assert.Equal(t, "pcm_s16le", argValue(args, "-c:a"))
		assert.Equal(t, "/w/v1/source.webm", argValue(args, "-i"))
	})

	t.Run("should probe duration", func(t *testing.T) {
		r := &fakeRunner{run: func(string, []string) (cmdrun.Result, error) {
			return cmdrun.Result{Stdout: `{"format":{"duration":"930.250000"}}`}, nil
		}}
		d, err := NewFFmpeg("", "", 0, r).Duration(ctx, "a.wav")
		require.NoError(t, err)
		assert.Equal(t, 930250*time.Millisecond, d)
		assert.Equal(t, "ffprobe", r.calls[0].name)
	})

	t.Run("should reject unreadable probe output", func(t *testing.T) {
		r := &fakeRunner{run: func(string, []string) (cmdrun.Result, error) {
			return cmdrun.Result{Stdout: `{"format":{"duration":"N/A"}}`}, nil
		}}
		_, err := NewFFmpeg("", "", 0, r).Duration(ctx, "a.wav")
		assert.Error(t, err)
	})

	t.Run("should cut a window", func(t *testing.T) {
		r := &fakeRunner{}
		err := NewFFmpeg("", "", 16000, r).Slice(ctx, "a.wav", "chunk-001.wav", 895*time.Second, 35*time.Second)
		require.NoError(t, err)
		args := r.calls[0].args
		assert.Equal(t, "895.000", argValue(args, "-ss"))
		assert.Equal(t, "35.000", argValue(args, "-t"))
		assert.Equal(t, "chunk-001.wav", args[len(args)-1])
	})
}
