/*
Package resilience keeps crash-looping shells from respawning forever.

A session with automatic restart enabled routes every restart through a
RestartGuard. Restarts that fail, or that follow a child which died too
quickly, count as failures. Enough of them in a row open the guard and the
session stays stopped until the cooldown lets one trial restart through.

	guard := resilience.NewRestartGuard(resilience.RestartLimits())

	err := guard.Execute(func() error {
		return sess.Start(ctx)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		// wait out the cooldown
	}

# States

	Closed --[MaxFailures in Window]-> Open --[Cooldown]-> Half-Open --[trial ok]-> Closed
	                                                          |
	                                                    [trial fails]
	                                                          v
	                                                         Open
*/
package resilience
