/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package connloop implements component H: the per-connection state machine
// that pairs one goroutine with one net.Conn, in the shape of the
// shockwave http11.Connection reference (state field, keep-alive timeout,
// per-connection request counter). That reference models edge-triggered
// non-blocking I/O with explicit suspend/resume; §9's design notes license
// trading that for blocking reads/writes gated by net.Conn.SetDeadline,
// which is what this package does — the state machine and its transition
// names are kept, the I/O underneath them is not.
package connloop

import (
	"bufio"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nabbar/edgecache/internal/bufpool"
	"github.com/nabbar/edgecache/internal/httpengine"
	"github.com/nabbar/edgecache/internal/nlog"
	"github.com/nabbar/edgecache/internal/ratelimit"
)

// State mirrors the shockwave ConnectionState enum: new, active (processing
// a request), idle (waiting for the next pipelined request) and closed.
type State int32

const (
	StateNew State = iota
	StateActive
	StateIdle
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateActive:
		return "active"
	case StateIdle:
		return "idle"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config tunes a Connection's lifecycle, sourced from internal/config.
type Config struct {
	IdleTimeout       time.Duration
	SlowClientAfter   time.Duration
	SlowClientMinRead int
	MaxRequests       int // 0 = unlimited
}

// DefaultConfig mirrors the spec's keep-alive and slow-client defaults.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:       60 * time.Second,
		SlowClientAfter:   10 * time.Second,
		SlowClientMinRead: 4,
		MaxRequests:       0,
	}
}

// Metrics is the subset of internal/metrics.Registry a Connection taps;
// declared here (rather than importing internal/metrics directly) so this
// package stays agnostic to the exporter and *metrics.Registry satisfies it
// structurally.
type Metrics interface {
	ConnOpened()
	ConnClosed()
	ObserveDenial(ratelimit.Outcome)
}

// Connection drives one accepted socket through parse/handle/render cycles
// until it idles out, is rate-limited away, or the peer hangs up.
type Connection struct {
	id     string
	conn   net.Conn
	ip     string
	cfg    Config
	pool   *bufpool.Pool
	limit  *ratelimit.Limiter
	engine *httpengine.Engine
	log    nlog.Logger
	mtr    Metrics

	state     State
	requests  int
	bytesRead int // cumulative bytes received since Serve started, for the slow-client check
}

// New builds a Connection ready to Serve. ip is the remote address used as
// the rate-limit table key (§4.C); callers typically derive it from
// conn.RemoteAddr() stripped of its port. Every Connection is tagged with a
// fresh UUID carried in its log fields, so individual connections can be
// traced through an access log without correlating by socket fd or IP+time.
func New(conn net.Conn, ip string, cfg Config, pool *bufpool.Pool, limit *ratelimit.Limiter, engine *httpengine.Engine, log nlog.Logger) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:     id,
		conn:   conn,
		ip:     ip,
		cfg:    cfg,
		pool:   pool,
		limit:  limit,
		engine: engine,
		log:    log.WithFields(nlog.Fields{"conn_id": id}),
		state:  StateNew,
	}
}

// ID returns the connection's generated trace identifier.
func (c *Connection) ID() string {
	return c.id
}

// WithMetrics attaches an optional metrics sink, returning c for chaining.
func (c *Connection) WithMetrics(m Metrics) *Connection {
	c.mtr = m
	return c
}

// RemoteIP extracts the host portion of a net.Addr's string form, falling
// back to the whole string if it carries no port.
func RemoteIP(addr net.Addr) string {
	s := addr.String()
	if host, _, err := net.SplitHostPort(s); err == nil {
		return host
	}
	return s
}

// Serve runs the connection to completion: admits it against the rate
// limiter, then loops parse → handle → render until keep-alive ends,
// the idle timeout fires, or a parse/ratelimit error forces close. Exactly
// one matching Release call is made for every Admit that returned
// ratelimit.Admitted (§8 invariant), regardless of how the loop exits.
func (c *Connection) Serve() {
	defer c.conn.Close()

	outcome := c.limit.Admit(c.ip, time.Now())
	if outcome != ratelimit.Admitted {
		if c.mtr != nil {
			c.mtr.ObserveDenial(outcome)
		}
		c.log.WithFields(nlog.Fields{"ip": c.ip, "outcome": outcome.String()}).Warning("connection rejected by rate limiter")
		return
	}
	defer c.limit.Release(c.ip)

	if c.mtr != nil {
		c.mtr.ConnOpened()
		defer c.mtr.ConnClosed()
	}

	buf, aerr := c.pool.Acquire()
	if aerr != nil {
		if be, ok := c.mtr.(interface{ BufferExhausted() }); ok {
			be.BufferExhausted()
		}
		c.log.Error(aerr, "no buffers available, closing connection")
		return
	}
	defer c.pool.Release(buf)

	reader := bufio.NewReaderSize(c.conn, c.pool.BufferSize())
	writer := bufio.NewWriterSize(c.conn, c.pool.BufferSize())

	c.state = StateNew
	connStart := time.Now()

	for {
		if c.cfg.MaxRequests > 0 && c.requests >= c.cfg.MaxRequests {
			return
		}

		c.state = StateIdle
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout))

		req, result, ok := c.readRequest(reader, buf[:0], connStart)
		if !ok {
			return
		}
		if result != httpengine.ParseOK {
			c.handleParseError(writer, result)
			return
		}

		c.state = StateActive
		c.requests++

		_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.IdleTimeout))
		resp := c.engine.Handle(req, time.Now())
		if rerr := httpengine.Render(writer, req.Version, resp); rerr != nil {
			c.log.Error(rerr, "render failed")
			return
		}
		if ferr := writer.Flush(); ferr != nil {
			c.log.Error(ferr, "flush failed")
			return
		}
		if resp.Source == httpengine.BodyFile && resp.File != nil {
			_ = resp.File.Close()
		}

		if !resp.KeepAlive {
			c.state = StateClosed
			return
		}
	}
}

// readRequest accumulates bytes from the connection until the header block
// is complete and Parse reports ParseOK, ParseMalformed or
// ParseUnsupportedVersion, or until the block reaches
// httpengine.MaxRequestBuffer bytes without a terminator (ParseTooLarge),
// enforcing the slow-client rule from §4.H: a peer that, after
// SlowClientAfter has elapsed since the connection started, has delivered
// fewer than SlowClientMinRead bytes in total over the connection's
// lifetime is treated as a hung client and dropped. The byte count is
// cumulative across every request on the connection (c.bytesRead), not
// reset per call, so a connection that already exchanged many pipelined or
// keep-alive requests is never penalized for a single slow line mid-way
// through its life.
func (c *Connection) readRequest(reader *bufio.Reader, scratch []byte, connStart time.Time) (*httpengine.Request, httpengine.ParseResult, bool) {
	for {
		line, err := reader.ReadSlice('\n')
		if len(line) > 0 {
			scratch = append(scratch, line...)
			c.bytesRead += len(line)
		}

		if err == bufio.ErrBufferFull {
			return nil, httpengine.ParseTooLarge, true
		}
		if err != nil {
			return nil, 0, false
		}

		if strings.HasSuffix(string(scratch), "\r\n\r\n") {
			req, _, result := httpengine.Parse(scratch)
			return req, result, true
		}
		if len(scratch) >= httpengine.MaxRequestBuffer {
			return nil, httpengine.ParseTooLarge, true
		}

		if time.Since(connStart) > c.cfg.SlowClientAfter && c.bytesRead < c.cfg.SlowClientMinRead {
			return nil, 0, false
		}
	}
}

func (c *Connection) handleParseError(w *bufio.Writer, result httpengine.ParseResult) {
	status := 400
	switch result {
	case httpengine.ParseTooLarge:
		status = 413
	case httpengine.ParseUnsupportedVersion:
		status = 505
	}
	resp := httpengine.NewResponse(status)
	resp.SetHeader("Connection", "close")
	resp.SetHeader("Content-Length", "0")
	_ = httpengine.Render(w, "HTTP/1.1", resp)
	_ = w.Flush()

	if err := result.AsError(); err != nil {
		c.log.WithFields(nlog.Fields{"ip": c.ip}).Warning(err.Error())
	}
}

// State reports the connection's current lifecycle state, for metrics.
func (c *Connection) State() State {
	return c.state
}
