/*
Package dispatch fires a fixed number of concurrent GET requests at one target
and reports how long the run took.

# Lifecycle

	Idle -> Dispatching -> AwaitingCompletion -> Done

Run moves Idle to Dispatching, launches Count units, moves to
AwaitingCompletion once the last one is launched, and to Done once the last
one has finished. Start does the same and then exits the process; that exit
is the terminal action of every run, whatever the outcome.

# Units of work

Each unit performs exactly one httpclient.Get and blocks until it resolves.
Units are handed to a Launcher:
  - ThreadLauncher: one goroutine locked to its own OS thread per unit
  - PoolLauncher: an ants goroutine pool sized to Count

Both run units truly concurrently; the choice only changes the substrate.
ThreadLauncher raises the runtime thread limit ahead of the units it pins.

# Timing

MeasureCompletion (default) stops the clock after every unit has finished.
MeasureDispatch stops it right after the launch loop, so it reports how long
dispatching took. Either way Run waits for all units before returning, so no
in-flight request is abandoned.

# Failures

A failed or panicking unit is counted and logged at debug level. It never
affects its siblings or the exit code.
*/
package dispatch
