// Package sharing sends document context into a project's terminal and
// tracks which documents the shell has seen.
//
// A document starts notShared. A completed send marks it shared with a
// timestamp. Clearing the project's terminal restarts the shell, which
// forgets everything it was told, so every shared document of that project
// becomes contextLost until it is sent again.
package sharing
