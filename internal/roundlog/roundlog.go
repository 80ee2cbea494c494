// Package roundlog records what happens on nodes and links during a round.
//
// Each role gets its own Logger with three streams: node-internal
// instructions, classical link traffic and quantum link traffic. On Finish
// the node and classical streams are written fresh into the round's output
// directory, while quantum link entries are appended to the NetworkLog that
// lives as long as the network itself.
package roundlog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Category selects the stream an entry is routed to.
type Category string

const (
	CategoryNode      Category = "node"
	CategoryClassical Category = "clink"
	CategoryQuantum   Category = "qlink"
)

// Entry is a log entry as handed in by a role program. Sender and Receiver
// are role names; Value is the node output or classical payload.
type Entry struct {
	Instruction string
	Message     string
	// Time is the virtual timestamp in nanoseconds.
	Time     float64
	Sender   string
	Receiver string
	Value    any
}

// NodeRecord is one persisted node-internal entry.
type NodeRecord struct {
	Instruction string  `yaml:"INS"`
	Message     string  `yaml:"LOG"`
	Time        float64 `yaml:"WCT"`
	Output      any     `yaml:"OUT"`
}

// ClassicalRecord is one persisted classical link entry.
type ClassicalRecord struct {
	Instruction string  `yaml:"INS"`
	Message     string  `yaml:"LOG"`
	Time        float64 `yaml:"WCT"`
	Sender      string  `yaml:"SEN"`
	Receiver    string  `yaml:"REC"`
	Payload     any     `yaml:"MSG"`
}

// QuantumRecord is one persisted quantum link entry. Nodes and Path use
// physical node identities, not role names.
type QuantumRecord struct {
	Instruction string   `yaml:"INS"`
	Message     string   `yaml:"LOG"`
	Time        float64  `yaml:"WCT"`
	Nodes       []string `yaml:"NOD"`
	Path        string   `yaml:"PTH"`
}

// Clock is the source of virtual timestamps.
type Clock interface {
	Now() time.Duration
}

// InstructionsFile names the node-internal log of role.
func InstructionsFile(role string) string { return role + "_instrs.yaml" }

// ClassicalFile names the classical link log of role.
func ClassicalFile(role string) string { return role + "_class_comm.yaml" }

// Logger is the per-role structured log of one round.
type Logger struct {
	role    string
	dir     string
	roles   map[string]string
	network *NetworkLog
	clock   Clock

	mu        sync.Mutex
	nodes     []NodeRecord
	classical []ClassicalRecord
	quantum   []QuantumRecord
}

// New creates the logger of role. dir is the round's output directory and
// roles maps every role to its physical node identity.
func New(role, dir string, roles map[string]string, network *NetworkLog, clock Clock) *Logger {
	table := make(map[string]string, len(roles))
	for r, n := range roles {
		table[r] = n
	}
	return &Logger{role: role, dir: dir, roles: table, network: network, clock: clock}
}

// Role returns the role the logger belongs to.
func (l *Logger) Role() string { return l.role }

// Add routes e to the stream named by category. Unknown categories are
// dropped.
func (l *Logger) Add(category Category, e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch category {
	case CategoryNode:
		l.nodes = append(l.nodes, NodeRecord{
			Instruction: e.Instruction,
			Message:     e.Message,
			Time:        e.Time,
			Output:      e.Value,
		})
	case CategoryClassical:
		l.classical = append(l.classical, ClassicalRecord{
			Instruction: e.Instruction,
			Message:     e.Message,
			Time:        e.Time,
			Sender:      e.Sender,
			Receiver:    e.Receiver,
			Payload:     e.Value,
		})
	case CategoryQuantum:
		from, to := l.physical(e.Sender), l.physical(e.Receiver)
		l.quantum = append(l.quantum, QuantumRecord{
			Instruction: e.Instruction,
			Message:     e.Message,
			Time:        e.Time,
			Nodes:       []string{from, to},
			Path:        PathKey(from, to),
		})
	}
}

// physical resolves a role to its node identity. Unknown names are kept.
func (l *Logger) physical(role string) string {
	if n, ok := l.roles[role]; ok {
		return n
	}
	return role
}

// PathKey is the canonical key of the link between two physical nodes.
func PathKey(from, to string) string {
	return from + "-" + to
}

func (l *Logger) now() float64 {
	if l.clock == nil {
		return 0
	}
	return float64(l.clock.Now().Nanoseconds())
}

// Node logs a node-internal instruction at the current virtual time.
func (l *Logger) Node(ins, msg string, value any) {
	l.Add(CategoryNode, Entry{Instruction: ins, Message: msg, Time: l.now(), Value: value})
}

// Classical logs classical link traffic at the current virtual time.
func (l *Logger) Classical(ins, msg, sender, receiver string, payload any) {
	l.Add(CategoryClassical, Entry{Instruction: ins, Message: msg, Time: l.now(), Sender: sender, Receiver: receiver, Value: payload})
}

// Quantum logs quantum link traffic at the current virtual time.
func (l *Logger) Quantum(ins, msg, sender, receiver string) {
	l.Add(CategoryQuantum, Entry{Instruction: ins, Message: msg, Time: l.now(), Sender: sender, Receiver: receiver})
}

// Counts returns the number of entries per stream.
func (l *Logger) Counts() (node, classical, quantum int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.nodes), len(l.classical), len(l.quantum)
}

// Finish writes the role's node and classical logs, replacing any previous
// content, and appends its quantum entries to the network log.
func (l *Logger) Finish() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := writeYAML(filepath.Join(l.dir, InstructionsFile(l.role)), l.nodes); err != nil {
		return err
	}
	if err := writeYAML(filepath.Join(l.dir, ClassicalFile(l.role)), l.classical); err != nil {
		return err
	}
	if l.network != nil && len(l.quantum) > 0 {
		if err := l.network.Append(l.quantum); err != nil {
			return err
		}
	}
	return nil
}

func writeYAML[T any](path string, records []T) error {
	if records == nil {
		records = []T{}
	}
	data, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadFile decodes a log file written by Finish or a NetworkLog. A missing
// file holds no records.
func ReadFile[T NodeRecord | ClassicalRecord | QuantumRecord](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []T
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return records, nil
}
