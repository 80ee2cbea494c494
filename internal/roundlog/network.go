package roundlog

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// NetworkFile is the name of the network-wide quantum link log.
const NetworkFile = "network_log.yaml"

// NetworkLog is the append-only record of all quantum link traffic over the
// lifetime of a network. It is shared by every Logger of every round.
type NetworkLog struct {
	path string
	mu   sync.Mutex
}

// NewNetworkLog returns the log stored at path. The file is created on the
// first append.
func NewNetworkLog(path string) *NetworkLog {
	return &NetworkLog{path: path}
}

// Path returns the log file location.
func (n *NetworkLog) Path() string { return n.path }

// Append adds records to the end of the log. Every record is encoded as its
// own sequence item and the batch is written with a single call, so
// concurrent appends from several roles never interleave.
func (n *NetworkLog) Append(records []QuantumRecord) error {
	if len(records) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, rec := range records {
		data, err := yaml.Marshal([]QuantumRecord{rec})
		if err != nil {
			return fmt.Errorf("encoding network log entry: %w", err)
		}
		buf.Write(data)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	f, err := os.OpenFile(n.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening network log: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("appending to network log: %w", err)
	}
	return f.Close()
}

// Read returns every record in the log. A missing log is empty.
func (n *NetworkLog) Read() ([]QuantumRecord, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return ReadNetworkFile(n.path)
}

// ReadNetworkFile decodes a network log file.
func ReadNetworkFile(path string) ([]QuantumRecord, error) {
	return ReadFile[QuantumRecord](path)
}

// CopyTo snapshots the log into path.
func (n *NetworkLog) CopyTo(path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	data, err := os.ReadFile(n.path)
	if errors.Is(err, fs.ErrNotExist) {
		data = nil
	} else if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
