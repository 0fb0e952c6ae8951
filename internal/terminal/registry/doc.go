// Package registry maps projects to their terminal sessions.
//
// Each project has at most one session. Sessions are created lazily on first
// lookup and live until the project is removed or the host shuts down. When a
// state store is configured, the working directory and command history of a
// project are restored on creation and saved on removal and shutdown.
package registry
