package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultPort is the TCP port the server listens on.
	DefaultPort = 5678

	// DefaultRoot is the directory clients are confined to.
	DefaultRoot = "server"

	// DefaultWorkers is the number of goroutines running filesystem
	// commands.
	DefaultWorkers = 4

	// DefaultQueueDepth bounds filesystem commands waiting for a worker.
	DefaultQueueDepth = 64

	// DefaultMaxLineLength is the longest command line accepted, in
	// bytes, before the line is discarded.
	DefaultMaxLineLength = 4096

	// MinMaxLineLength is the smallest --max-line the server accepts.
	MinMaxLineLength = 16

	// DefaultCommandRate is the sustained commands per second allowed
	// per connection.  Zero leaves flood control off.
	DefaultCommandRate = 0.0

	// DefaultCommandBurst is how many commands a connection may send
	// back to back once --rate is set.
	DefaultCommandBurst = 200

	// DefaultWriteTimeout bounds a single write to a client.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultGracePeriod is how long shutdown waits for running
	// filesystem commands before cancelling them.
	DefaultGracePeriod = 5 * time.Second
)
