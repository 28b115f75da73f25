// Package listing builds the ordered sequence of filesystem entries the
// sender walks: one (kind, relative path, absolute path) triple per
// file or directory, depth-first, directories before their children.
package listing

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// Kind distinguishes a directory entry from a file entry.
type Kind int

const (
	File Kind = iota
	Directory
)

// Entry is one node of a sender's traversal. RelativePath always uses
// forward slashes, matching the wire's virtual-path convention.
type Entry struct {
	Kind         Kind
	RelativePath string
	AbsolutePath string
}

// Build walks every argument path and returns the ordered listing: a
// directory's entry precedes every entry beneath it, and order within
// a directory follows os.ReadDir (lexical by filename).
func Build(argPaths []string) ([]Entry, error) {
	var entries []Entry

	for _, argPath := range argPaths {
		absPath, err := filepath.Abs(argPath)
		if err != nil {
			return nil, fmt.Errorf("listing: resolve %q: %w", argPath, err)
		}
		if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
			absPath = resolved
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("listing: stat %q: %w", argPath, err)
		}

		root := filepath.Base(absPath)
		entries, err = walk(entries, root, absPath, info)
		if err != nil {
			return nil, err
		}
	}

	return entries, nil
}

func walk(entries []Entry, relativePath, absolutePath string, info os.FileInfo) ([]Entry, error) {
	if info.IsDir() {
		entries = append(entries, Entry{
			Kind:         Directory,
			RelativePath: relativePath,
			AbsolutePath: absolutePath,
		})

		children, err := os.ReadDir(absolutePath)
		if err != nil {
			return nil, fmt.Errorf("listing: read dir %q: %w", absolutePath, err)
		}

		for _, child := range children {
			childInfo, err := child.Info()
			if err != nil {
				return nil, fmt.Errorf("listing: stat %q: %w", child.Name(), err)
			}
			entries, err = walk(
				entries,
				path.Join(relativePath, child.Name()),
				filepath.Join(absolutePath, child.Name()),
				childInfo,
			)
			if err != nil {
				return nil, err
			}
		}

		return entries, nil
	}

	return append(entries, Entry{
		Kind:         File,
		RelativePath: relativePath,
		AbsolutePath: absolutePath,
	}), nil
}
