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

package connloop_test

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nabbar/edgecache/internal/bufpool"
	"github.com/nabbar/edgecache/internal/cache"
	"github.com/nabbar/edgecache/internal/connloop"
	"github.com/nabbar/edgecache/internal/httpengine"
	"github.com/nabbar/edgecache/internal/nlog"
	"github.com/nabbar/edgecache/internal/ratelimit"
	"github.com/nabbar/edgecache/internal/static"
)

func newEngine(t *testing.T, root string) *httpengine.Engine {
	t.Helper()
	c := cache.New(cache.Config{Slots: 64, TTL: time.Hour, PerEntryCap: 1 << 20, GlobalCap: 10 << 20, PurgeEvery: time.Hour})
	routes := static.New()
	return httpengine.NewEngine(root, c, routes, 60*time.Second, "edgecache")
}

func TestConnectionServesOneRequestAndCloses(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	client, server := net.Pipe()
	defer client.Close()

	cfg := connloop.DefaultConfig()
	cfg.IdleTimeout = time.Second
	pool := bufpool.New(4096, 4)
	limiter := ratelimit.New(ratelimit.DefaultConfig())
	engine := newEngine(t, root)
	log := nlog.New(nlog.ErrorLevel, false)

	conn := connloop.New(server, "127.0.0.1", cfg, pool, limiter, engine, log)
	done := make(chan struct{})
	go func() {
		conn.Serve()
		close(done)
	}()

	if _, err := client.Write([]byte("GET /index.html HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}

	reader := bufio.NewReader(client)
	status, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if status != "HTTP/1.1 200 OK\r\n" {
		t.Fatalf("expected 200 status line, got %q", status)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("connection did not close after Connection: close")
	}
}

func TestConnectionRejectedWhenRateLimited(t *testing.T) {
	root := t.TempDir()
	client, server := net.Pipe()
	defer client.Close()

	cfg := connloop.DefaultConfig()
	pool := bufpool.New(4096, 4)

	limitCfg := ratelimit.DefaultConfig()
	limiter := ratelimit.New(limitCfg)
	now := time.Now()
	for i := 0; i < limitCfg.RequestLimit+1; i++ {
		limiter.Admit("10.0.0.1", now)
	}

	engine := newEngine(t, root)
	log := nlog.New(nlog.ErrorLevel, false)

	conn := connloop.New(server, "10.0.0.1", cfg, pool, limiter, engine, log)
	done := make(chan struct{})
	go func() {
		conn.Serve()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected rejected connection to close immediately")
	}
}

func TestRemoteIPStripsPort(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("192.0.2.1"), Port: 5555}
	if got := connloop.RemoteIP(addr); got != "192.0.2.1" {
		t.Fatalf("expected 192.0.2.1, got %s", got)
	}
}
