package core

import (
	"context"
	"net"
	"sync"
	"time"

	"telfs/internal/command"
	ncerr "telfs/internal/errors"
	"telfs/internal/metrics"
	"telfs/internal/sandbox"
	"telfs/internal/session"
	"telfs/internal/transport"
	"telfs/internal/worker"
	"telfs/util"
)

// ServeMode is the multi-client file server.  A single loop goroutine
// owns the session registry, every connection's inbound buffer and all
// socket writes.  Reader goroutines and the accept goroutine only post
// events to it, and filesystem commands run on a worker pool whose
// results come back to the loop.
type ServeMode struct {
	Address  string
	Listener transport.Listener // defaults to plain TCP

	Root       string // host directory served to clients
	CreateRoot bool   // create Root when it is missing

	Workers       int
	QueueDepth    int
	MaxLineLength int
	CommandRate   float64 // commands per second per client; 0 disables
	CommandBurst  int
	IdleTimeout   time.Duration // 0 disables
	WriteTimeout  time.Duration
	GracePeriod   time.Duration // how long in-flight commands get on shutdown

	Metrics *metrics.Collector
	Logger  *util.Logger

	// OnListen, when set, is called with the bound address before the
	// first connection is accepted.
	OnListen func(net.Addr)

	once    sync.Once
	queries chan chan []session.Session
}

func (m *ServeMode) init() {
	m.once.Do(func() {
		m.queries = make(chan chan []session.Session)
	})
}

// Run opens the root, binds the listener and serves until ctx is
// cancelled (returning nil) or the listener fails permanently.
func (m *ServeMode) Run(ctx context.Context) error {
	m.init()

	root, err := sandbox.OpenRoot(m.Root, m.CreateRoot)
	if err != nil {
		return err
	}
	defer root.Close()

	listener := m.Listener
	if listener == nil {
		listener = &transport.TCPListener{}
	}
	ln, err := listener.Listen(ctx, "tcp", m.Address)
	if err != nil {
		return ncerr.Wrap("listen", m.Address, err)
	}
	defer ln.Close()

	m.Logger.Info("serving %s on %s", root.Dir(), ln.Addr())
	if m.OnListen != nil {
		m.OnListen(ln.Addr())
	}

	// Jobs outlive ctx by up to GracePeriod; shutdown cancels them.
	pool := worker.New(context.WithoutCancel(ctx), m.Workers, m.QueueDepth, m.Logger.With("worker:"))
	l := newLoop(m, ln, command.New(root), pool)
	go l.accept(ctx)
	return l.run(ctx)
}

// Sessions returns the connected sessions sorted by identity.  It is
// answered by the running loop, so it blocks until Run is serving or
// ctx is done.
func (m *ServeMode) Sessions(ctx context.Context) ([]session.Session, error) {
	m.init()
	reply := make(chan []session.Session, 1)
	select {
	case m.queries <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
