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

package connloop

import (
	"net"
	"sync"

	"github.com/nabbar/edgecache/internal/bufpool"
	"github.com/nabbar/edgecache/internal/httpengine"
	"github.com/nabbar/edgecache/internal/nlog"
	"github.com/nabbar/edgecache/internal/ratelimit"
)

// Acceptor repeatedly accepts connections on a single listener and spawns
// one goroutine per connection, the worker-process half of §4.I's
// multi-process model: one Acceptor runs inside each forked worker, all of
// them sharing the same SO_REUSEPORT port.
type Acceptor struct {
	Listener net.Listener
	Config   Config
	Pool     *bufpool.Pool
	Limiter  *ratelimit.Limiter
	Engine   *httpengine.Engine
	Log      nlog.Logger
	Metrics  Metrics // optional

	wg sync.WaitGroup
}

// Run accepts connections until Accept returns an error (a closed listener,
// or any other failure such as running out of file descriptors), blocking
// the caller and returning that error; no connection cap is applied. Each accepted connection is served on its own goroutine and
// tracked so Wait can block for graceful drain.
func (a *Acceptor) Run() error {
	for {
		conn, err := a.Listener.Accept()
		if err != nil {
			return err
		}

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			ip := RemoteIP(conn.RemoteAddr())
			c := New(conn, ip, a.Config, a.Pool, a.Limiter, a.Engine, a.Log).WithMetrics(a.Metrics)
			c.Serve()
		}()
	}
}

// Wait blocks until every in-flight connection goroutine spawned by Run has
// returned, used during graceful shutdown (§6 supervisor signal handling).
func (a *Acceptor) Wait() {
	a.wg.Wait()
}
