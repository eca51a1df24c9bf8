// Package batch translates a whole directory tree, mirroring its layout
// into an output directory.
package batch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dgallion1/doctrans/internal/source"
	"github.com/dgallion1/doctrans/internal/translate"
)

// Config controls a batch run.
type Config struct {
	InDir  string
	OutDir string

	// MaxConcurrentFiles bounds how many files translate at once. The rate
	// controller inside the translator still serializes model calls.
	MaxConcurrentFiles int

	// CopyUnsupported mirrors files of unsupported formats into the output
	// tree instead of skipping them.
	CopyUnsupported bool
}

// Result aggregates the outcome of a batch run.
type Result struct {
	Translated int
	Copied     int
	Skipped    int
	Failed     int

	Groups translate.Tally
}

// Runner walks an input tree and translates every supported file.
type Runner struct {
	tr  *translate.Translator
	cfg Config
	log *slog.Logger
}

func NewRunner(tr *translate.Translator, cfg Config, log *slog.Logger) *Runner {
	if cfg.MaxConcurrentFiles <= 0 {
		cfg.MaxConcurrentFiles = 4
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{tr: tr, cfg: cfg, log: log}
}

// Run processes the input tree. Translated files are written next to their
// mirrored location with an .html extension; outputs that already exist
// are left alone so an interrupted run can resume.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var (
		mu  sync.Mutex
		res Result
		wg  sync.WaitGroup
	)
	sem := make(chan struct{}, r.cfg.MaxConcurrentFiles)

	err := filepath.WalkDir(r.cfg.InDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, err := filepath.Rel(r.cfg.InDir, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(filepath.Join(r.cfg.OutDir, rel), 0o755)
		}

		if !source.IsSupportedExtension(path) {
			if !r.cfg.CopyUnsupported {
				mu.Lock()
				res.Skipped++
				mu.Unlock()
				return nil
			}
			if err := copyFile(path, filepath.Join(r.cfg.OutDir, rel)); err != nil {
				r.log.Error("copy failed", "file", rel, "error", err)
				mu.Lock()
				res.Failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			res.Copied++
			mu.Unlock()
			return nil
		}

		outPath := filepath.Join(r.cfg.OutDir, htmlName(rel))
		if _, err := os.Stat(outPath); err == nil {
			r.log.Info("output exists, skipping", "file", rel)
			mu.Lock()
			res.Skipped++
			mu.Unlock()
			return nil
		}

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			tally, err := r.translateFile(ctx, path, outPath)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.log.Error("translation failed", "file", rel, "error", err)
				res.Failed++
				return
			}
			res.Translated++
			res.Groups.Success += tally.Success
			res.Groups.Compromise += tally.Compromise
			res.Groups.Fail += tally.Fail
			r.log.Info("translated",
				"file", rel,
				"success", tally.Success,
				"compromise", tally.Compromise,
				"fail", tally.Fail,
			)
		}()
		return nil
	})
	wg.Wait()
	if err != nil {
		return res, err
	}

	r.log.Info("batch complete",
		"translated", res.Translated,
		"copied", res.Copied,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"groups_success", res.Groups.Success,
		"groups_compromise", res.Groups.Compromise,
		"groups_fail", res.Groups.Fail,
	)
	return res, nil
}

// translateFile loads one source file, runs the pipeline, and writes the
// translated HTML.
func (r *Runner) translateFile(ctx context.Context, inPath, outPath string) (translate.Tally, error) {
	var zero translate.Tally

	loader, err := source.ForFile(inPath)
	if err != nil {
		return zero, err
	}
	f, err := os.Open(inPath)
	if err != nil {
		return zero, err
	}
	doc, err := loader.Load(f, filepath.Base(inPath))
	f.Close()
	if err != nil {
		return zero, err
	}

	statuses := r.tr.TranslateTree(ctx, doc)

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return zero, err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return zero, err
	}
	if err := doc.Render(out); err != nil {
		out.Close()
		os.Remove(outPath)
		return zero, fmt.Errorf("render: %w", err)
	}
	if err := out.Close(); err != nil {
		return zero, err
	}
	return translate.CountStatuses(statuses), nil
}

// htmlName swaps the file extension for .html.
func htmlName(rel string) string {
	ext := filepath.Ext(rel)
	return strings.TrimSuffix(rel, ext) + ".html"
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
