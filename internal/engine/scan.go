package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// StdinSource is the pseudo-path that reads the source stream from stdin.
const StdinSource = "-"

// Pair is one source stream paired with the destination file it brings in
// line.
type Pair struct {
	Src string
	Dst string
}

// collectPairs expands cfg.Sources and cfg.Dst into concrete file pairs
// plus the destination directories that must exist before workers run.
func collectPairs(cfg Config) ([]Pair, []string, error) {
	if len(cfg.Sources) == 0 {
		return nil, nil, errors.New("no sources given")
	}

	dstInfo, err := os.Stat(cfg.Dst)
	dstIsDir := err == nil && dstInfo.IsDir()

	if len(cfg.Sources) > 1 && !dstIsDir {
		return nil, nil, fmt.Errorf(
			"destination %s must be an existing directory for multiple sources", cfg.Dst)
	}

	var pairs []Pair
	var dirs []string
	for _, src := range cfg.Sources {
		if src == StdinSource {
			if dstIsDir {
				return nil, nil, fmt.Errorf(
					"destination %s is a directory; stdin needs a file destination", cfg.Dst)
			}
			pairs = append(pairs, Pair{Src: src, Dst: cfg.Dst})
			continue
		}

		info, err := os.Lstat(src)
		if err != nil {
			return nil, nil, fmt.Errorf("source: %w", err)
		}

		if info.IsDir() {
			if !cfg.Recursive {
				return nil, nil, fmt.Errorf("source %s is a directory (use -r)", src)
			}
			p, d, err := walkSource(src, cfg.Dst)
			if err != nil {
				return nil, nil, err
			}
			pairs = append(pairs, p...)
			dirs = append(dirs, d...)
			continue
		}

		if !info.Mode().IsRegular() {
			return nil, nil, fmt.Errorf("source %s is not a regular file", src)
		}

		dst := cfg.Dst
		if dstIsDir {
			dst = filepath.Join(cfg.Dst, filepath.Base(src))
		}
		pairs = append(pairs, Pair{Src: src, Dst: dst})
	}

	return pairs, dirs, nil
}

// walkSource maps every regular file under srcRoot to the corresponding
// path under dstRoot. Non-regular entries are skipped; content is the only
// thing being synchronized.
func walkSource(srcRoot, dstRoot string) ([]Pair, []string, error) {
	var pairs []Pair
	dirs := []string{dstRoot}

	err := filepath.WalkDir(srcRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel != "." {
				dirs = append(dirs, filepath.Join(dstRoot, rel))
			}
			return nil
		}
		if !d.Type().IsRegular() {
			slog.Debug("skipping non-regular entry", "path", path)
			return nil
		}
		pairs = append(pairs, Pair{Src: path, Dst: filepath.Join(dstRoot, rel)})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scan %s: %w", srcRoot, err)
	}
	return pairs, dirs, nil
}
