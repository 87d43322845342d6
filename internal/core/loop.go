package core

import (
	"bytes"
	"context"
	"net"
	"time"

	"golang.org/x/time/rate"

	"telfs/internal/command"
	ncerr "telfs/internal/errors"
	"telfs/internal/retry"
	"telfs/internal/session"
	"telfs/internal/worker"
	"telfs/util"
)

const (
	// maxPendingLines is how many complete lines may wait behind a
	// running command before the client's reader is paused.  One read
	// may overshoot it; nothing is ever dropped.
	maxPendingLines = 128

	idleNotice = "Connection idle for too long, closing"
)

// client is the loop's view of one connection.  Only the loop
// goroutine touches it, except for conn reads in the reader goroutine.
type client struct {
	id      session.ID
	conn    net.Conn
	lines   *lineBuffer
	pending []line
	busy    bool // a job for this client is on the pool
	waiting bool // the reader is parked until resume
	closed  bool
	limiter *rate.Limiter
	log     *util.Logger
	done    chan struct{} // closed with the connection
	resume  chan struct{} // lets the reader issue its next Read
}

type readEvent struct {
	c    *client
	data []byte
	err  error
}

type result struct {
	c     *client
	reply command.Reply
}

type loop struct {
	m          *ServeMode
	ln         net.Listener
	dispatcher *command.Dispatcher
	pool       *worker.Pool
	registry   *session.Registry
	conns      map[session.ID]*client
	log        *util.Logger

	accepted  chan net.Conn
	acceptErr chan error
	reads     chan readEvent
	results   chan result
	quit      chan struct{}
}

func newLoop(m *ServeMode, ln net.Listener, d *command.Dispatcher, pool *worker.Pool) *loop {
	return &loop{
		m:          m,
		ln:         ln,
		dispatcher: d,
		pool:       pool,
		registry:   session.NewRegistry(),
		conns:      make(map[session.ID]*client),
		log:        m.Logger,
		accepted:   make(chan net.Conn),
		acceptErr:  make(chan error, 1),
		reads:      make(chan readEvent),
		results:    make(chan result),
		quit:       make(chan struct{}),
	}
}

func (l *loop) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return nil
		case err := <-l.acceptErr:
			l.log.Error("listener failed: %v", err)
			l.shutdown()
			return err
		case conn := <-l.accepted:
			l.open(conn)
		case ev := <-l.reads:
			l.handleRead(ctx, ev)
		case res := <-l.results:
			l.handleResult(ctx, res)
		case q := <-l.m.queries:
			q <- l.snapshot()
		}
	}
}

// accept feeds new connections to the loop.  Temporary failures such
// as descriptor exhaustion are retried with backoff; anything else
// ends the server.
func (l *loop) accept(ctx context.Context) {
	backoff := retry.AcceptBackoff()
	for {
		var conn net.Conn
		err := backoff.Do(ctx, func(attempt int) error {
			c, err := l.ln.Accept()
			if err == nil {
				conn = c
				return nil
			}
			if ctx.Err() != nil || ncerr.IsClosed(err) || !ncerr.IsRetryable(err) {
				return retry.Permanent(err)
			}
			l.log.Warn("accept failed (attempt %d): %v", attempt, err)
			return err
		})
		if err != nil {
			if ctx.Err() == nil {
				select {
				case l.acceptErr <- ncerr.Wrap("accept", l.ln.Addr().String(), err):
				case <-l.quit:
				}
			}
			return
		}

		select {
		case l.accepted <- conn:
		case <-l.quit:
			conn.Close()
			return
		}
	}
}

func (l *loop) open(conn net.Conn) {
	id := session.ID(conn.RemoteAddr().String())
	if stale, ok := l.conns[id]; ok {
		l.close(stale)
	}

	c := &client{
		id:    id,
		conn:  conn,
		lines: newLineBuffer(l.m.MaxLineLength),
		log:   l.log.With(string(id)),
		done:   make(chan struct{}),
		resume: make(chan struct{}, 1),
	}
	if l.m.CommandRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(l.m.CommandRate), l.m.CommandBurst)
	}
	l.conns[id] = c
	sess := l.registry.Open(id)
	l.m.Metrics.ConnectionOpened()
	c.log.Verbose("client connected")

	l.send(c, command.Banner(), command.Prompt(sess))
	if !c.closed {
		go l.read(c)
	}
}

// read runs in its own goroutine and copies every chunk off the pooled
// buffer before handing it to the loop.  After each chunk it waits for
// the loop to make room, so a client that pipelines faster than its
// commands finish is held back by TCP flow control.
func (l *loop) read(c *client) {
	for {
		if l.m.IdleTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(l.m.IdleTimeout)) //nolint:errcheck
		}
		buf := util.GetBuf()
		n, err := c.conn.Read(*buf)
		var data []byte
		if n > 0 {
			data = bytes.Clone((*buf)[:n])
		}
		util.PutBuf(buf)

		select {
		case l.reads <- readEvent{c: c, data: data, err: err}:
		case <-c.done:
			return
		}
		if err != nil {
			return
		}
		select {
		case <-c.resume:
		case <-c.done:
			return
		}
	}
}

func (l *loop) handleRead(ctx context.Context, ev readEvent) {
	c := ev.c
	if c.closed {
		return
	}
	if len(ev.data) > 0 {
		l.m.Metrics.BytesReceived(int64(len(ev.data)))
		c.pending = append(c.pending, c.lines.Feed(ev.data)...)
	}
	if ev.err != nil {
		l.disconnect(c, ev.err)
		return
	}
	c.waiting = true
	l.drain(ctx, c)
}

func (l *loop) disconnect(c *client, err error) {
	var ne net.Error
	switch {
	case ncerr.IsClosed(err):
		c.log.Verbose("client disconnected")
	case ncerr.As(err, &ne) && ne.Timeout():
		c.log.Verbose("closing idle connection")
		l.send(c, []string{idleNotice}, "")
	default:
		c.log.Warn("read failed: %v", err)
		l.m.Metrics.RecordError(err.Error())
	}
	l.close(c)
}

// drain handles queued lines until one of them goes to the pool.
func (l *loop) drain(ctx context.Context, c *client) {
	for !c.busy && !c.closed && len(c.pending) > 0 {
		next := c.pending[0]
		c.pending[0] = line{}
		c.pending = c.pending[1:]
		l.handleLine(ctx, c, next)
	}
	if len(c.pending) == 0 {
		c.pending = nil
	}
	if c.waiting && !c.closed && len(c.pending) < maxPendingLines {
		c.waiting = false
		c.resume <- struct{}{}
	}
}

func (l *loop) handleLine(ctx context.Context, c *client, ln line) {
	if ln.err != nil {
		l.send(c, []string{command.Message(ln.err)}, l.prompt(c))
		return
	}
	if c.limiter != nil && !c.limiter.Allow() {
		l.m.Metrics.CommandDropped()
		l.send(c, []string{command.Message(ncerr.ErrRateLimited)}, l.prompt(c))
		return
	}

	cmd, ok := command.Parse(ln.text)
	if !ok {
		l.send(c, nil, l.prompt(c))
		return
	}
	v, ok := l.dispatcher.Lookup(cmd)
	if !ok {
		l.m.Metrics.CommandUnknown()
		c.log.Debug("unknown command %q", cmd.Verb)
		l.send(c, nil, l.prompt(c))
		return
	}

	l.m.Metrics.CommandHandled()
	c.log.Debug("%s %q", v.Name, cmd.Args)
	sess := l.registry.Get(c.id)
	if v.Local {
		l.apply(c, l.dispatcher.Run(ctx, v, sess, cmd))
		return
	}

	c.busy = true
	err := l.pool.TrySubmit(func(jctx context.Context) {
		reply := command.Reply{Output: []string{"Error: command failed"}}
		defer func() {
			select {
			case l.results <- result{c: c, reply: reply}:
			case <-l.quit:
			}
		}()
		reply = l.dispatcher.Run(jctx, v, sess, cmd)
	})
	if err != nil {
		c.busy = false
		l.m.Metrics.CommandDropped()
		l.send(c, []string{command.Message(err)}, l.prompt(c))
	}
}

func (l *loop) handleResult(ctx context.Context, res result) {
	c := res.c
	c.busy = false
	if c.closed {
		return
	}
	l.apply(c, res.reply)
	l.drain(ctx, c)
}

// apply commits a reply's session changes and sends its output.
func (l *loop) apply(c *client, r command.Reply) {
	if r.Err != nil {
		c.log.Warn("%v", r.Err)
		l.m.Metrics.RecordError(r.Err.Error())
	}
	if r.Nickname != nil {
		l.registry.SetNickname(c.id, *r.Nickname)
		c.log.Verbose("nickname set to %s", *r.Nickname)
	}
	if r.Cwd != nil {
		if err := l.registry.SetCurrentDirectory(c.id, *r.Cwd); err != nil {
			c.log.Error("rejected directory change to %q: %v", *r.Cwd, err)
		}
	}
	if r.Close {
		l.send(c, r.Output, "")
		c.log.Verbose("client logged out")
		l.close(c)
		return
	}
	l.send(c, r.Output, l.prompt(c))
}

func (l *loop) prompt(c *client) string {
	return command.Prompt(l.registry.Get(c.id))
}

// send writes lines and tail in one call.  Writing to a closed client
// does nothing; a failed write closes it.
func (l *loop) send(c *client, lines []string, tail string) {
	if c.closed {
		return
	}
	payload := util.FormatLines(lines, tail)
	if len(payload) == 0 {
		return
	}
	n, err := util.WriteDeadline(c.conn, payload, l.m.WriteTimeout)
	l.m.Metrics.BytesSent(int64(n))
	if err != nil {
		if !ncerr.IsClosed(err) {
			c.log.Warn("write failed: %v", err)
		}
		l.close(c)
	}
}

// sendTo is send addressed by session identity.  Unknown identities
// are ignored.
func (l *loop) sendTo(id session.ID, lines []string, tail string) {
	if c, ok := l.conns[id]; ok {
		l.send(c, lines, tail)
	}
}

// close releases c.  It is idempotent and drops c's session only if
// the identity still belongs to c.
func (l *loop) close(c *client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	c.conn.Close()
	c.pending = nil
	c.lines.Reset()
	if l.conns[c.id] == c {
		delete(l.conns, c.id)
		l.registry.Remove(c.id)
	}
	l.m.Metrics.ConnectionClosed()
}

func (l *loop) snapshot() []session.Session {
	ids := l.registry.IDs()
	out := make([]session.Session, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.registry.Get(id))
	}
	return out
}

func (l *loop) shutdown() {
	l.ln.Close()
	close(l.quit)
	l.log.Verbose("closing %d sessions", l.registry.Len())

	for _, id := range l.registry.IDs() {
		l.sendTo(id, []string{command.Message(ncerr.ErrPoolClosed)}, "")
	}
	for _, c := range l.conns {
		l.close(c)
	}
	l.registry.Clear()

	drained := make(chan struct{})
	go func() {
		l.pool.Close()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(l.m.GracePeriod):
		l.log.Warn("cancelling commands still running after %v", l.m.GracePeriod)
		l.pool.Abort()
		<-drained
	}

	l.log.Info("server stopped: %s", l.m.Metrics.JSON())
}
