package asset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/netround/internal/ctxlog"
)

// InputDir is the experiment subdirectory holding per-role documents.
const InputDir = "input"

// DirInputs reads <experiment>/input/<role>.yaml.
type DirInputs struct {
	ExperimentPath string
}

// NewDirInputs creates an input provider for the experiment at path.
func NewDirInputs(path string) *DirInputs {
	return &DirInputs{ExperimentPath: path}
}

// Path returns the document location of role.
func (d *DirInputs) Path(role string) string {
	return filepath.Join(d.ExperimentPath, InputDir, role+".yaml")
}

// Document implements InputProvider.
func (d *DirInputs) Document(ctx context.Context, role string) ([]byte, error) {
	path := d.Path(role)
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading input document of role %q: %w", role, err)
	}
	ctxlog.FromContext(ctx).Debug("Input document read.", "role", role, "path", path, "bytes", len(doc))
	return doc, nil
}

// StaticInputs serves documents from memory. Roles without an entry get an
// empty document.
type StaticInputs map[string][]byte

// Document implements InputProvider.
func (s StaticInputs) Document(_ context.Context, role string) ([]byte, error) {
	return s[role], nil
}
