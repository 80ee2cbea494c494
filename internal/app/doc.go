// Package app wires an experiment together: logger, program registry, network
// asset, round engine, result assembly and the optional health and metrics
// server. It is independent of the command line.
package app
