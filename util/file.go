package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// FindFile walks up from the working directory up to maxDepth levels
// looking for rel, so the binary can locate db/migrations when invoked from
// the repo root or a directory at most maxDepth levels below it (such as
// cmd/indexer).
func FindFile(rel string, maxDepth int) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for i := 0; i <= maxDepth; i++ {
		candidate := filepath.Join(dir, rel)
		if _, err := os.Stat(candidate); err == nil {
			abs, err := filepath.Abs(candidate)
			if err != nil {
				return "", err
			}
			return abs, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("util: could not find %q within %d parent directories", rel, maxDepth)
}
