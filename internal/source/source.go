// Package source locates the event documents for a pipeline run.
package source

import (
	"fmt"
	"os"
	"path/filepath"
)

// List returns the paths of every regular file in dir with a .xml extension,
// in ascending lexicographic filename order. Files with other extensions and
// subdirectories are ignored.
//
// The ordering is load-bearing: merge tie-breaks depend on documents being
// processed in exactly this order.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading data directory: %w", err)
	}

	// os.ReadDir already sorts entries by filename.
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".xml" {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return paths, nil
}
