package asset

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/netround/internal/ctxlog"
	"github.com/vk/netround/internal/fsutil"
	"github.com/vk/netround/internal/network"
	"github.com/vk/netround/internal/noise"
)

// NetworkDir is the experiment subdirectory holding the network asset.
const NetworkDir = "network"

// ErrNoNetworkFiles is returned when the network directory holds no .hcl
// files.
var ErrNoNetworkFiles = errors.New("no .hcl network files found")

// networkFile is the top-level schema of a network asset file.
type networkFile struct {
	Variables []*variableBlock `hcl:"variable,block"`
	Roles     []*roleBlock     `hcl:"role,block"`
	Nodes     []*nodeBlock     `hcl:"node,block"`
	Channels  []*channelBlock  `hcl:"channel,block"`
	Remain    hcl.Body         `hcl:",remain"`
}

type roleBlock struct {
	Name    string   `hcl:"name,label"`
	Node    string   `hcl:"node"`
	Program string   `hcl:"program,optional"`
	Command []string `hcl:"command,optional"`
}

type nodeBlock struct {
	Slug        string            `hcl:"slug,label"`
	Qubits      int               `hcl:"qubits,optional"`
	Coordinates *coordinatesBlock `hcl:"coordinates,block"`
	Parameters  hcl.Expression    `hcl:"parameters,optional"`
}

type coordinatesBlock struct {
	Latitude  float64 `hcl:"latitude"`
	Longitude float64 `hcl:"longitude"`
}

type channelBlock struct {
	Slug       string         `hcl:"slug,label"`
	Parameters hcl.Expression `hcl:"parameters,optional"`
}

// HCLProvider reads every .hcl file under <experiment>/network and merges
// their variable, role, node and channel blocks. Parameter expressions may
// refer to variables and call numeric helpers such as pow or max.
//
//	variable "fibre_loss" {
//	  type    = number
//	  default = 0.2
//	}
//
//	role "Sender" {
//	  node    = "n1"
//	  program = "teleport.sender"
//	}
//
//	role "Receiver" {
//	  node    = "n2"
//	  command = ["./simulate", "--receiver"]
//	}
//
//	node "n1" {
//	  qubits = 2
//	  coordinates {
//	    latitude  = 52.01
//	    longitude = 4.36
//	  }
//	  parameters = { depolar_rate = 1000, det_eff = 0.95 }
//	}
//
//	channel "n1-n2" {
//	  parameters = { p_loss_init = 0.1, p_loss_length = var.fibre_loss }
//	}
type HCLProvider struct {
	ExperimentPath string
	// Variables override the defaults of declared variables.
	Variables map[string]string
}

// NewHCLProvider creates a provider for the experiment at path.
func NewHCLProvider(path string, vars map[string]string) *HCLProvider {
	return &HCLProvider{ExperimentPath: path, Variables: vars}
}

// Network implements TopologyProvider.
func (p *HCLProvider) Network(ctx context.Context) (*network.Descriptor, error) {
	a, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	return a.Network, nil
}

// Load parses the network asset.
func (p *HCLProvider) Load(ctx context.Context) (*Asset, error) {
	logger := ctxlog.FromContext(ctx)
	dir := filepath.Join(p.ExperimentPath, NetworkDir)
	logger.Debug("Loading network asset...", "path", dir)

	files, err := fsutil.FindFilesByExtension(dir, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to walk network directory %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoNetworkFiles, dir)
	}
	logger.Debug("Found HCL files to load", "files", files)

	a := &Asset{
		Network:  &network.Descriptor{Roles: make(map[string]string)},
		Programs: make(map[string]string),
		Commands: make(map[string][]string),
	}
	parser := hclparse.NewParser()
	roots := make([]*networkFile, len(files))
	var variables []*variableBlock
	for i, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root networkFile
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		roots[i] = &root
		variables = append(variables, root.Variables...)
	}

	vars, err := resolveVariables(variables, p.Variables)
	if err != nil {
		return nil, err
	}
	evalCtx := evalContext(vars)

	for i, root := range roots {
		file := files[i]
		for _, r := range root.Roles {
			if _, dup := a.Network.Roles[r.Name]; dup {
				return nil, fmt.Errorf("%s: role %q declared more than once", file, r.Name)
			}
			a.Network.Roles[r.Name] = r.Node
			if r.Program != "" && len(r.Command) > 0 {
				return nil, fmt.Errorf("%s: role %q sets both program and command", file, r.Name)
			}
			if r.Program != "" {
				a.Programs[r.Name] = r.Program
			}
			if len(r.Command) > 0 {
				a.Commands[r.Name] = r.Command
			}
		}
		for _, n := range root.Nodes {
			tmpl := network.NodeTemplate{
				Slug:       n.Slug,
				Qubits:     n.Qubits,
				Parameters: evalParameters(ctx, evalCtx, n.Parameters, "node", n.Slug),
			}
			if n.Coordinates != nil {
				tmpl.Coordinates = &network.Coordinates{
					Latitude:  n.Coordinates.Latitude,
					Longitude: n.Coordinates.Longitude,
				}
			}
			a.Network.Nodes = append(a.Network.Nodes, tmpl)
		}
		for _, c := range root.Channels {
			a.Network.Channels = append(a.Network.Channels, network.ChannelTemplate{
				Slug:       c.Slug,
				Parameters: evalParameters(ctx, evalCtx, c.Parameters, "channel", c.Slug),
			})
		}
		logger.Debug("Successfully loaded definitions from HCL file", "file", file)
	}

	logger.Info("Network asset loaded.",
		"roles", len(a.Network.Roles),
		"node_templates", len(a.Network.Nodes),
		"channel_templates", len(a.Network.Channels),
		"variables", len(vars),
	)
	return a, nil
}

// evalParameters evaluates a parameters attribute. Evaluation problems are
// logged and yield no parameters, so the noise models fall back to their
// defaults.
func evalParameters(ctx context.Context, evalCtx *hcl.EvalContext, expr hcl.Expression, kind, slug string) noise.Params {
	if expr == nil {
		return noise.Params{}
	}
	logger := ctxlog.FromContext(ctx)
	if problems := unresolved(expr, evalCtx); len(problems) > 0 {
		logger.Warn("Ignoring parameters that cannot be evaluated.", kind, slug, "problems", problems)
		return noise.Params{}
	}
	v, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		logger.Warn("Ignoring parameters that cannot be evaluated.", kind, slug, "error", diags.Error())
		return noise.Params{}
	}
	return noise.ParamsFromValue(v)
}
