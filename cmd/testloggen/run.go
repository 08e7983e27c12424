package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/testlog/rewrite"
)

// run processes every collected file concurrently. Each file is an
// independent transformation, so failures carry the file's diagnostic and
// do not stop other files from being reported.
func run(cmd *cobra.Command, opts cliOptions, features rewrite.Features, paths []string, logger *zap.Logger) error {
	files, err := collectFiles(paths)
	if err != nil {
		return err
	}

	proc := rewrite.New(features)

	jobs := opts.jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	g := new(errgroup.Group)
	g.SetLimit(jobs)

	var mu sync.Mutex
	var changedFiles []string
	var failures []error

	// Each file is processed to completion even when another file fails,
	// so a single run reports every diagnostic.
	fail := func(err error) error {
		mu.Lock()
		failures = append(failures, err)
		mu.Unlock()
		return nil
	}

	for _, file := range files {
		g.Go(func() error {
			src, err := os.ReadFile(file)
			if err != nil {
				return fail(err)
			}
			out, changed, err := proc.File(file, src)
			if err != nil {
				return fail(err)
			}
			if !changed {
				logger.Debug("unchanged", zap.String("file", file))
				return nil
			}
			logger.Debug("rewritten", zap.String("file", file))

			switch {
			case opts.list:
				mu.Lock()
				changedFiles = append(changedFiles, file)
				mu.Unlock()
			case opts.write:
				info, err := os.Stat(file)
				if err != nil {
					return fail(err)
				}
				if err := os.WriteFile(file, out, info.Mode().Perm()); err != nil {
					return fail(fmt.Errorf("writing %s: %w", file, err))
				}
			default:
				mu.Lock()
				_, err = cmd.OutOrStdout().Write(out)
				mu.Unlock()
				if err != nil {
					return fail(err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	if len(failures) > 0 {
		sort.Slice(failures, func(i, j int) bool { return failures[i].Error() < failures[j].Error() })
		return errors.Join(failures...)
	}

	sort.Strings(changedFiles)
	for _, file := range changedFiles {
		fmt.Fprintln(cmd.OutOrStdout(), file)
	}
	return nil
}

// collectFiles expands paths into the _test.go files to process. A path
// naming a file is taken as-is; directories are walked, skipping vendor,
// testdata, and hidden or underscore-prefixed entries.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	seen := map[string]bool{}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			continue
		}
		err = filepath.WalkDir(path, func(entry string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if entry != path && skipDir(name) {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(name, "_test.go") && !seen[entry] {
				seen[entry] = true
				files = append(files, entry)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

func skipDir(name string) bool {
	return name == "vendor" || name == "testdata" ||
		strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}
