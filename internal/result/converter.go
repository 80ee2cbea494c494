package result

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/vk/netround/internal/roundlog"
)

// LogConverter reads the round's logs back and bundles them with the role
// outputs.
type LogConverter struct{}

// Convert implements Converter.
func (LogConverter) Convert(_ context.Context, n int, logDir string, raw *RawResults) (Document, error) {
	roles := make([]string, 0, len(raw.Outputs))
	for role := range raw.Outputs {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	instructions := make(map[string][]roundlog.NodeRecord, len(roles))
	classical := make(map[string][]roundlog.ClassicalRecord, len(roles))
	for _, role := range roles {
		nodes, err := roundlog.ReadFile[roundlog.NodeRecord](filepath.Join(logDir, roundlog.InstructionsFile(role)))
		if err != nil {
			return nil, fmt.Errorf("reading instructions of %s: %w", role, err)
		}
		msgs, err := roundlog.ReadFile[roundlog.ClassicalRecord](filepath.Join(logDir, roundlog.ClassicalFile(role)))
		if err != nil {
			return nil, fmt.Errorf("reading classical log of %s: %w", role, err)
		}
		instructions[role] = nodes
		classical[role] = msgs
	}

	network, err := roundlog.ReadNetworkFile(filepath.Join(logDir, roundlog.NetworkFile))
	if err != nil {
		return nil, fmt.Errorf("reading network log: %w", err)
	}

	return Document{
		"round":               n,
		"run_id":              raw.RunID,
		"outputs":             raw.Outputs,
		"instructions":        instructions,
		"classical":           classical,
		"network_log_entries": len(network),
	}, nil
}
