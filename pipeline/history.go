package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/hairizuanbinnoorazman/shotdiff/capture"
	"github.com/hairizuanbinnoorazman/shotdiff/compare"
	"github.com/hairizuanbinnoorazman/shotdiff/config"
)

// ErrNoHistoryShots is returned by Latest when history_dir holds no shots
// of the base domain.
var ErrNoHistoryShots = errors.New("no history shots")

// HistoryLabel names the reference side of a latest run, e.g. 320_history.png.
const HistoryLabel = "history"

// History captures the base domain into history_dir as the reference set
// for later latest runs.
func (p *Pipeline) History(ctx context.Context) (*Report, error) {
	if p.cfg.HistoryDir == "" {
		return nil, config.ErrNoHistoryDir
	}
	base, ok := p.cfg.BaseDomain()
	if !ok {
		return nil, config.ErrInvalid
	}

	report := &Report{Directory: p.cfg.HistoryDir}
	paths, err := p.Paths(ctx)
	if err != nil {
		return report, err
	}
	report.Paths = len(paths)

	if err := ResetDir(p.cfg.HistoryDir); err != nil {
		return report, err
	}
	report.Capture, err = p.Capture(ctx, p.cfg.HistoryDir, paths, config.Domains{base})
	return report, err
}

// Latest captures the base domain into directory and compares it against
// the shots saved by History.
func (p *Pipeline) Latest(ctx context.Context) (*Report, error) {
	if p.cfg.HistoryDir == "" {
		return nil, config.ErrNoHistoryDir
	}
	base, ok := p.cfg.BaseDomain()
	if !ok {
		return nil, config.ErrInvalid
	}
	if overlapping(p.cfg.HistoryDir, p.cfg.Directory) {
		return nil, fmt.Errorf("%w: history_dir and directory must not contain each other", config.ErrInvalid)
	}
	if _, err := os.Stat(p.cfg.HistoryDir); err != nil {
		return nil, fmt.Errorf("history shots: %w", err)
	}

	rec := p.begin(ctx, HistoryLabel, base.Label)
	report, err := p.compareRun(ctx, p.cfg.Directory, HistoryLabel, base.Label, func(paths config.Paths) (capture.Summary, error) {
		summary, err := p.Capture(ctx, p.cfg.Directory, paths, config.Domains{base})
		copied, cerr := CopyHistory(p.cfg.HistoryDir, p.cfg.Directory, base.Label)
		if cerr != nil {
			return summary, errors.Join(err, fmt.Errorf("copy history shots: %w", cerr))
		}
		if copied == 0 {
			return summary, errors.Join(err, fmt.Errorf("%w in %s", ErrNoHistoryShots, p.cfg.HistoryDir))
		}
		p.logger.Info(ctx, "history shots copied", map[string]interface{}{
			"count": copied,
		})
		return summary, err
	})
	rec.finish(ctx, report, err)
	return report, err
}

// CopyHistory copies <history>/<label>/<size>_<domain>.png to
// <dir>/<label>/<size>_history.png and returns how many files it copied.
func CopyHistory(history, dir, domain string) (int, error) {
	suffix := "_" + domain + ".png"
	copied := 0
	err := filepath.WalkDir(history, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == compare.ThumbnailDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), suffix) {
			return nil
		}
		label := filepath.Base(filepath.Dir(path))
		size := strings.TrimSuffix(d.Name(), suffix)
		dst := filepath.Join(dir, label, size+"_"+HistoryLabel+".png")
		if err := copyFile(path, dst); err != nil {
			return err
		}
		copied++
		return nil
	})
	return copied, err
}

// overlapping reports whether a and b are the same directory or one lies
// inside the other.
func overlapping(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return within(absA, absB) || within(absB, absA)
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := renameio.NewPendingFile(dst)
	if err != nil {
		return err
	}
	defer out.Cleanup()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.CloseAtomicallyReplace()
}
