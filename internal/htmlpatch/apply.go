package htmlpatch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
)

// maxConcurrentFiles bounds how many pages are patched at once.
const maxConcurrentFiles = 4

// Patch transforms one document.
type Patch func(content string) (string, Outcome, error)

// FileResult is the outcome of a Patch on one file.
type FileResult struct {
	File    string
	Outcome Outcome
	Err     error
}

// Summary counts results by outcome.
type Summary map[Outcome]int

// Summarize counts results by outcome.
func Summarize(results []FileResult) Summary {
	s := Summary{}
	for _, r := range results {
		s[r.Outcome]++
	}
	return s
}

// Apply runs patch over each file under root concurrently and writes back the
// files it changed. Missing files and patch errors are recorded per file and
// do not stop the others; the returned error is for I/O failures and
// cancellation only. Results are sorted by file name.
func Apply(ctx context.Context, root string, files []string, patch Patch) ([]FileResult, error) {
	results := make([]FileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFiles)
	for i, name := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := applyOne(filepath.Join(root, name), patch)
			res.File = name
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(a, b int) bool { return results[a].File < results[b].File })
	return results, nil
}

func applyOne(path string, patch Patch) (FileResult, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return FileResult{Outcome: Missing}, nil
	}
	if err != nil {
		return FileResult{}, fmt.Errorf("stat %s: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return FileResult{}, fmt.Errorf("read %s: %w", path, err)
	}

	out, outcome, err := patch(string(data))
	if err != nil {
		return FileResult{Outcome: Failed, Err: err}, nil
	}
	if out != string(data) {
		if err := os.WriteFile(path, []byte(out), info.Mode().Perm()); err != nil {
			return FileResult{}, fmt.Errorf("write %s: %w", path, err)
		}
	}
	return FileResult{Outcome: outcome}, nil
}
