// Package state persists per-project terminal state across host restarts.
//
// One file per project lives under the state directory, encoded as JSON,
// YAML or TOML. Writes go to a temporary file that is renamed into place
// while holding an flock on the directory, so concurrent hosts sharing a
// state directory never observe a torn file.
package state
