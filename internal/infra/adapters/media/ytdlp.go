package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"vidscribe/internal/domain"
	"vidscribe/internal/domain/model"
	"vidscribe/internal/domain/ports/adapter"
	"vidscribe/internal/infra/adapters/cmdrun"
)

var (
	_ adapter.Extractor  = (*YtDlp)(nil)
	_ adapter.Downloader = (*YtDlp)(nil)
)

// YtDlp resolves metadata and downloads audio with the yt-dlp binary. Calls
// share one rate limiter so bulk channel work stays polite to the source.
type YtDlp struct {
	bin     string
	runner  cmdrun.Runner
	limiter *rate.Limiter
	log     *zerolog.Logger
}

// NewYtDlp builds the adapter. rps <= 0 disables rate limiting.
func NewYtDlp(bin string, rps float64, runner cmdrun.Runner, logger *zerolog.Logger) *YtDlp {
	if bin == "" {
		bin = "yt-dlp"
	}
	if runner == nil {
		runner = cmdrun.Exec{}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	l := logger.With().Str("component", "yt-dlp").Logger()
	return &YtDlp{bin: bin, runner: runner, limiter: limiter, log: &l}
}

type ytEntry struct {
	Type     string     `json:"_type"`
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Duration float64    `json:"duration"`
	Entries  []*ytEntry `json:"entries"`
}

// Resolve returns metadata for url. Playlists and channels come back with
// their flat entry list as Children, in source order.
func (y *YtDlp) Resolve(ctx context.Context, url string) (*model.SourceInfo, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := y.runner.Run(ctx, y.bin,
		"--dump-single-json", "--flat-playlist", "--skip-download", "--no-warnings", url)
	if err != nil {
		return nil, domain.NewStageError(domain.ErrExtraction, "expand", "resolve", url, err)
	}
	var root ytEntry
	if err := json.Unmarshal([]byte(res.Stdout), &root); err != nil {
		return nil, domain.NewStageError(domain.ErrExtraction, "expand", "resolve", "unreadable metadata for "+url, err)
	}

	info := &model.SourceInfo{SourceItem: model.SourceItem{ID: root.ID, Title: root.Title, DurationSeconds: root.Duration}}
	if root.Type == "playlist" || root.Entries != nil {
		info.Children = []model.SourceItem{}
		for _, e := range root.Entries {
			if e == nil || e.ID == "" || e.Type == "playlist" {
				continue
			}
			info.Children = append(info.Children, model.SourceItem{ID: e.ID, Title: e.Title, DurationSeconds: e.Duration})
		}
		y.log.Debug().Str("url", url).Int("entries", len(info.Children)).Msg("playlist resolved")
	}
	return info, nil
}

// Fetch downloads the best audio stream of sourceID into destDir.
func (y *YtDlp) Fetch(ctx context.Context, sourceID, destDir string) (string, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return "", err
	}
	res, err := y.runner.Run(ctx, y.bin,
		"-f", "bestaudio/best",
		"--no-playlist", "--no-progress", "--no-warnings",
		"-o", filepath.Join(destDir, "source.%(ext)s"),
		"--print", "after_move:filepath",
		watchURL(sourceID))
	if err != nil {
		return "", err
	}
	if p := lastLine(res.Stdout); p != "" {
		if _, statErr := os.Stat(p); statErr == nil {
			return p, nil
		}
	}
	matches, _ := filepath.Glob(filepath.Join(destDir, "source.*"))
	for _, m := range matches {
		if !strings.HasSuffix(m, ".part") {
			return m, nil
		}
	}
	return "", fmt.Errorf("yt-dlp reported success but no file was written for %s", sourceID)
}

func watchURL(sourceID string) string {
	if strings.Contains(sourceID, "://") {
		return sourceID
	}
	return "https://www.youtube.com/watch?v=" + sourceID
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
