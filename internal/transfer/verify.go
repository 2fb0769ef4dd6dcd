package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tOgg1/remotectl/internal/mount"
)

// Request describes one copy.
type Request struct {
	LocalPath  string
	RemotePath string
	Direction  Direction
}

// FileName returns the base name of the copied file, taken from the source.
func (r Request) FileName() string {
	if r.Direction == ToRemote {
		return baseName(r.LocalPath)
	}
	return baseName(r.RemotePath)
}

// baseName splits on both separators since local paths may be Windows paths.
func baseName(p string) string {
	p = strings.TrimRight(p, `/\`)
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Verifier checks that a copied file is visible at its destination.
type Verifier interface {
	Verify(ctx context.Context, req Request) error
}

// LocalVerifier checks a from-remote copy in the local filesystem. A
// directory destination must contain the file; a file destination must be
// listed in its parent directory.
type LocalVerifier struct{}

func (LocalVerifier) Verify(_ context.Context, req Request) error {
	dest := req.LocalPath
	name := req.FileName()
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		return listContains(dest, name)
	}
	return listContains(filepath.Dir(dest), filepath.Base(dest))
}

// MountVerifier checks a to-remote copy through the share mounted by Drive.
type MountVerifier struct {
	Drive *mount.Drive

	// Root maps the drive letter to the directory to list; the default is
	// the drive root, e.g. `E:\`.
	Root func(letter mount.DriveLetter) string
}

func (v MountVerifier) Verify(_ context.Context, req Request) error {
	if v.Drive == nil {
		return ErrNotMounted
	}
	letter, ok := v.Drive.Letter()
	if !ok {
		return ErrNotMounted
	}
	root := letter.String() + `\`
	if v.Root != nil {
		root = v.Root(letter)
	}
	return listContains(root, req.FileName())
}

func listContains(dir, name string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.Name() == name {
			return nil
		}
	}
	return fmt.Errorf("%s not found in %s", name, dir)
}
