// Package cli builds the netround command tree. It turns flags into an
// app.Config, prints the round summary and maps failed rounds and usage
// mistakes onto process exit codes.
package cli
