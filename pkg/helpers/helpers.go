package helpers

import (
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5"
	"k8s.io/klog"
)

// ReadFile reads the whole file at path from a billy filesystem, such as
// the worktree of a checked out release.
func ReadFile(fs billy.Filesystem, path string) ([]byte, error) {
	klog.V(4).Infof("reading file %q", path)

	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open file %q: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("can't read file %q: %w", path, err)
	}

	return data, nil
}
