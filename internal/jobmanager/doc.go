// Package jobmanager provides POSIX-style job control for an interactive
// shell.
//
// A Job represents one process group launched by the shell. Jobs live in a
// Registry, ordered by creation, and are identified by small integer ids that
// restart at 1 whenever the Registry becomes empty.
//
// A Reaper collects exit, stop and signal status for children and records it
// in the Registry. The Registry lock is the only exclusion between the Reaper
// and the rest of the shell: launching, cleanup and the fg/bg/kill
// operations take it for their critical sections, and the Reaper holds it for
// the whole of each reap pass. Foreground waits block on the job, not on the
// lock, so the Reaper keeps running while the shell waits.
//
// A Manager ties the Registry and Reaper to a Terminal, which moves
// controlling-terminal ownership between the shell and its jobs.
package jobmanager
