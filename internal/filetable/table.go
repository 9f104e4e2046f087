// Package filetable holds the immutable set of files published by the server.
//
// A Table is built once at startup and then shared by pointer between every
// connection. It exposes no mutating methods, so concurrent readers need no
// locking.
package filetable

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	// ErrSubdirectory indicates the files directory contains a nested directory
	ErrSubdirectory = errors.New("subdirectories are not supported")
	// ErrInvalidName indicates a file name that cannot be used as a table key
	ErrInvalidName = errors.New("invalid file name")
	// ErrNotRegularFile indicates an entry such as a FIFO, socket or device
	// that cannot be read into memory
	ErrNotRegularFile = errors.New("not a regular file")
)

// Table maps file names to their content.
type Table struct {
	files map[string][]byte
	names []string
}

// New builds a Table from the given entries. The map and its byte slices are
// copied so later changes by the caller are not observed.
func New(files map[string][]byte) (*Table, error) {
	t := &Table{
		files: make(map[string][]byte, len(files)),
		names: make([]string, 0, len(files)),
	}

	for name, data := range files {
		if err := validateName(name); err != nil {
			return nil, err
		}
		t.files[name] = slices.Clone(data)
		t.names = append(t.names, name)
	}

	slices.Sort(t.names)

	return t, nil
}

// Load reads every entry of dir into memory. Any entry that is not a regular
// file, or cannot be read, aborts the load.
func Load(dir string) (*Table, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read files directory: %w", err)
	}

	files := make(map[string][]byte, len(entries))
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		// Stat follows symlinks, so a link to a regular file is accepted
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat file %s: %w", entry.Name(), err)
		}
		switch {
		case info.IsDir():
			return nil, fmt.Errorf("%w: %s", ErrSubdirectory, path)
		case !info.Mode().IsRegular():
			return nil, fmt.Errorf("%w: %s (%s)", ErrNotRegularFile, path, info.Mode().Type())
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", entry.Name(), err)
		}
		files[entry.Name()] = data
	}

	return New(files)
}

// Get returns the content stored under name. The returned slice must not be
// modified.
func (t *Table) Get(name string) ([]byte, bool) {
	data, ok := t.files[name]
	return data, ok
}

// Names returns the file names in ascending order.
func (t *Table) Names() []string {
	return slices.Clone(t.names)
}

// Len returns the number of files.
func (t *Table) Len() int {
	return len(t.files)
}

// Size returns the total number of content bytes held by the table.
func (t *Table) Size() int64 {
	var n int64
	for _, data := range t.files {
		n += int64(len(data))
	}
	return n
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}
