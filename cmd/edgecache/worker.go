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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nabbar/edgecache/internal/bufpool"
	"github.com/nabbar/edgecache/internal/cache"
	"github.com/nabbar/edgecache/internal/config"
	"github.com/nabbar/edgecache/internal/connloop"
	"github.com/nabbar/edgecache/internal/httpengine"
	"github.com/nabbar/edgecache/internal/metrics"
	"github.com/nabbar/edgecache/internal/nlog"
	"github.com/nabbar/edgecache/internal/ratelimit"
	"github.com/nabbar/edgecache/internal/static"
	"github.com/nabbar/edgecache/internal/supervisor"
)

// runWorker builds components A, C, D/E/F/G (via httpengine.Engine) and H
// (via connloop.Acceptor) for this worker process and serves the shared
// SO_REUSEPORT listener until signalled to stop. One runWorker call is the
// entire content of a worker process spawned by the supervisor (§4.I).
func runWorker(cfg config.Config, workerID int, log nlog.Logger) error {
	runtime.GOMAXPROCS(1)
	log = log.WithFields(nlog.Fields{"worker_id": workerID})

	if workerID >= 0 {
		if err := supervisor.PinToCPU(workerID); err != nil {
			log.Warning("failed to pin worker to CPU, continuing unpinned")
		}
	}

	listener, err := supervisor.ListenReusePort(fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return err
	}
	defer listener.Close()

	pool := bufpool.New(bufpool.DefaultBufferSize, bufpool.DefaultBufferCount)

	limiter := ratelimit.New(ratelimit.Config{
		TableSize:      ratelimit.DefaultConfig().TableSize,
		RequestLimit:   cfg.RateLimitRequests,
		Window:         time.Duration(cfg.RateLimitWindowSec) * time.Second,
		ConcurrentCap:  cfg.RateLimitConcurrent,
		ViolationLimit: ratelimit.DefaultConfig().ViolationLimit,
		BanDuration:    time.Duration(cfg.RateLimitBanSec) * time.Second,
		DevMode:        cfg.DevMode,
	})

	respCache := cache.New(cache.Config{
		Slots:       cfg.CacheSize,
		TTL:         time.Duration(cfg.CacheTTL) * time.Second,
		PerEntryCap: cache.DefaultConfig().PerEntryCap,
		GlobalCap:   cache.DefaultConfig().GlobalCap,
		PurgeEvery:  cache.DefaultConfig().PurgeEvery,
	})

	routes := static.New()
	routes.LoadFromConfig(cfg.StaticIndexMap, cfg.StaticDownloadPaths, cfg.StaticRedirects)

	mtr := metrics.New("edgecache")
	engine := httpengine.NewEngine(cfg.Root, respCache, routes, time.Duration(cfg.KeepAlive)*time.Second, "edgecache").WithMetrics(mtr)

	acceptor := &connloop.Acceptor{
		Listener: listener,
		Config: connloop.Config{
			IdleTimeout:       time.Duration(cfg.KeepAlive) * time.Second,
			SlowClientAfter:   10 * time.Second,
			SlowClientMinRead: 4,
		},
		Pool:    pool,
		Limiter: limiter,
		Engine:  engine,
		Log:     log,
		Metrics: mtr,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stopping atomic.Bool

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGHUP:
				routes.LoadFromConfig(cfg.StaticIndexMap, cfg.StaticDownloadPaths, cfg.StaticRedirects)
				log.Info("worker reloaded static route overlay on SIGHUP")
			case syscall.SIGINT, syscall.SIGTERM:
				if stopping.CompareAndSwap(false, true) {
					log.Info("worker draining on shutdown signal")
					_ = listener.Close()
					cancel()
				}
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(cache.DefaultConfig().PurgeEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				respCache.PurgeExpired(now)
				mtr.ObserveCache(respCache.Stats())
				mtr.ObserveSweep(limiter.Sweep(now))
			}
		}
	}()

	err = acceptor.Run()
	acceptor.Wait()

	if stopping.Load() {
		return nil
	}
	return err
}
