package domain

import "time"

// CommandLogEntry is the persisted fingerprint for one output path: the
// output's mtime at the moment its edge last completed, the hash of the
// fully expanded command that produced it, and any dependencies discovered
// from a depfile.
type CommandLogEntry struct {
	MTime   time.Time
	CmdHash uint64
	Deps    []string
}
