// Package diarize attributes audio to speakers with a pyannote pipeline run
// as an external command.
package diarize

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"vidscribe/internal/domain"
	"vidscribe/internal/domain/ports/adapter"
	"vidscribe/internal/infra/adapters/cmdrun"
)

var _ adapter.Diarizer = (*Pyannote)(nil)

// Pyannote runs a wrapper command that loads a pyannote.audio pipeline and
// prints its turns to stdout, either as a JSON array of
// {start,end,speaker} or as RTTM lines.
type Pyannote struct {
	enabled bool
	binary  string
	model   string
	device  string
	token   string
	runner  cmdrun.Runner

	lookPath func(string) (string, error)
}

// NewPyannote builds the diarizer. The Hugging Face token is handed to the
// child process through HF_TOKEN and never appears on its command line.
func NewPyannote(enabled bool, binary, model, device, hfToken string) *Pyannote {
	if binary == "" {
		binary = "pyannote-diarize"
	}
	return &Pyannote{
		enabled:  enabled,
		binary:   binary,
		model:    model,
		device:   device,
		token:    hfToken,
		runner:   cmdrun.Exec{Env: []string{"HF_TOKEN=" + hfToken}},
		lookPath: exec.LookPath,
	}
}

// Available reports whether diarization is enabled, has credentials and
// the command is installed.
func (p *Pyannote) Available() bool {
	if !p.enabled || strings.TrimSpace(p.token) == "" {
		return false
	}
	_, err := p.lookPath(p.binary)
	return err == nil
}

func (p *Pyannote) Diarize(ctx context.Context, audioPath string) ([]adapter.Turn, error) {
	if !p.Available() {
		return nil, domain.ErrDiarizationUnavailable
	}
	args := []string{"--output", "json"}
	if p.model != "" {
		args = append(args, "--model", p.model)
	}
	if p.device != "" {
		args = append(args, "--device", p.device)
	}
	args = append(args, audioPath)
	res, err := p.runner.Run(ctx, p.binary, args...)
	if err != nil {
		return nil, err
	}
	return parseTurns(res.Stdout)
}

func parseTurns(out string) ([]adapter.Turn, error) {
	out = strings.TrimSpace(out)
	var turns []adapter.Turn
	if strings.HasPrefix(out, "[") {
		if err := json.Unmarshal([]byte(out), &turns); err != nil {
			return nil, fmt.Errorf("pyannote: parse turns: %w", err)
		}
	} else {
		var err error
		if turns, err = parseRTTM(out); err != nil {
			return nil, err
		}
	}
	kept := turns[:0]
	for _, t := range turns {
		if t.End > t.Start && t.Speaker != "" {
			kept = append(kept, t)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept, nil
}

// parseRTTM reads "SPEAKER <file> <chan> <start> <dur> <NA> <NA> <speaker> ..." lines.
func parseRTTM(out string) ([]adapter.Turn, error) {
	var turns []adapter.Turn
	for n, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if len(f) == 0 || f[0] != "SPEAKER" {
			continue
		}
		if len(f) < 8 {
			return nil, fmt.Errorf("pyannote: rttm line %d: too few fields", n+1)
		}
		start, err := strconv.ParseFloat(f[3], 64)
		if err != nil {
			return nil, fmt.Errorf("pyannote: rttm line %d: %w", n+1, err)
		}
		dur, err := strconv.ParseFloat(f[4], 64)
		if err != nil {
			return nil, fmt.Errorf("pyannote: rttm line %d: %w", n+1, err)
		}
		turns = append(turns, adapter.Turn{Start: start, End: start + dur, Speaker: f[7]})
	}
	return turns, nil
}
