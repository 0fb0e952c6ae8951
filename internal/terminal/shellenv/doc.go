// Package shellenv builds the process environment and argument lists for
// child shells.
//
// The environment starts from the inherited process environment and then
// pins a small set of variables so every session behaves the same on every
// machine:
//
//	TERM=xterm-256color
//	LANG=en_US.UTF-8
//	HOME=<home>
//	PATH=<home>/.local/bin:/usr/local/bin:/opt/homebrew/bin:/usr/bin:/bin:/usr/sbin:/sbin
//	PS1=" "
//
// Shells are started as login shells so rc and profile files still run. The
// pinned PATH is injected at spawn, before the shell evaluates anything.
package shellenv
