// Package session owns the child shell of one project.
//
// A Session moves through four states:
//
//	Idle --Start--> Starting --spawned--> Running --Stop/exit--> Stopped
//	                    |                                         |
//	                    +--spawn failed--> (previous state)       +--Restart--> Starting
//
// Text meant for the shell goes through a single-slot outbox. Submit
// overwrites whatever is waiting; the terminal binding drains the slot and
// forwards it to the child's stdin. With AutoForward enabled the session runs
// that binding itself.
//
// Delayed writes created with Schedule belong to the process generation that
// was live when they were scheduled. Stop, Restart and an unexpected exit
// cancel them, so a submit keystroke never lands in a freshly restarted shell.
//
// Command history is a project-level record and survives restarts.
package session
