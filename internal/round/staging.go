package round

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vk/netround/internal/fsutil"
	"gopkg.in/yaml.v3"
)

const (
	// OutputDir is the experiment subdirectory receiving round output.
	OutputDir = "raw_output"
	// LastDir holds the output of the most recent round.
	LastDir = "LAST"
	// ResultsFile is written into LastDir at the end of every round.
	ResultsFile = "results.yaml"

	archiveLayout = "20060102-150405"
)

// staging is the output storage of one round.
type staging struct {
	last    string
	archive string
}

// stage creates a fresh LAST directory and a new timestamped archive
// directory under root.
func stage(root string, at time.Time) (*staging, error) {
	last := filepath.Join(root, LastDir)
	if err := os.RemoveAll(last); err != nil {
		return nil, fmt.Errorf("clearing %s: %w", last, err)
	}
	if err := os.MkdirAll(last, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", last, err)
	}

	base := filepath.Join(root, at.Format(archiveLayout))
	archive := base
	for i := 2; ; i++ {
		err := os.Mkdir(archive, 0755)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("creating %s: %w", archive, err)
		}
		archive = base + "-" + strconv.Itoa(i)
	}
	return &staging{last: last, archive: archive}, nil
}

// writeResults writes outputs to LAST/results.yaml as a one-element list.
// A nil map writes an empty list.
func (s *staging) writeResults(outputs map[string]any) error {
	doc := []map[string]any{}
	if outputs != nil {
		doc = append(doc, outputs)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	return os.WriteFile(filepath.Join(s.last, ResultsFile), data, 0644)
}

// mirror copies LAST into the archive directory.
func (s *staging) mirror() error {
	return fsutil.CopyDir(s.last, s.archive)
}
