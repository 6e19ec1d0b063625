// Package launch starts parsec executables.
//
// A launch waits for every dependency endpoint to accept connections (bounded
// by a timeout), starts the executable in its own process group with its
// output appended to the role's log file, and confirms the start:
//
//   - ModePID: the executable daemonizes, prints its pid on stdout and exits 0.
//   - ModeForeground: the executable keeps running; the start is confirmed once
//     its own endpoint accepts connections while the process is still alive.
//
// A failed launch returns an error and leaves no process behind that the
// launcher knows about; rolling back earlier launches is the caller's job.
package launch
