// Package core is the orchestration layer.  It composes the sandbox,
// the command table, the worker pool and the transport into the
// running file server, and provides a builder that assembles it from
// a Config.
//
// Architecture layers (bottom → top):
//
//	sandbox, session  →  command  →  worker, transport  →  core  →  cmd (CLI)
package core

import "context"

// Mode is a complete operational mode.  It owns its full lifecycle
// from binding the listener to teardown, and returns when ctx is
// cancelled or the listener fails permanently.
type Mode interface {
	Run(ctx context.Context) error
}
