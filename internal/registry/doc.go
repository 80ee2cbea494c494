// Package registry is the program loader of the round engine.
//
// Role programs are compiled Go functions, or external processes, that
// modules register by name. A role resolves to its program through an
// explicit binding or, failing that, a program registered under the role's
// own name. Nothing is discovered from the filesystem.
package registry
