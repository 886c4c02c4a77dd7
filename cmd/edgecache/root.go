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
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nabbar/edgecache/internal/config"
	"github.com/nabbar/edgecache/internal/metrics"
	"github.com/nabbar/edgecache/internal/nlog"
	"github.com/nabbar/edgecache/internal/supervisor"
)

var flagDevMode bool

// newRootCommand builds the thin cobra wrapper around the supervisor/worker
// split (§6 CLI surface: positional config path, -d/--dev, -h/--help are
// cobra's own default).
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "edgecache [config-file]",
		Short:   "edge-caching HTTP/1.1 static-content server",
		Args:    cobra.MaximumNArgs(1),
		Version: "0.1.0",
		RunE:    runRoot,
	}

	cmd.PersistentFlags().BoolVarP(&flagDevMode, "dev", "d", false, "force development mode (disables rate limiting)")

	return cmd
}

func runRoot(cmd *cobra.Command, args []string) error {
	configPath := ""
	if len(args) == 1 {
		configPath = args[0]
	}

	loader := config.New()
	cfg, lerr := loader.Load(configPath)
	if lerr != nil && configPath != "" {
		return lerr
	}
	defer loader.Stop()

	if flagDevMode {
		cfg.DevMode = true
	}

	log := nlog.New(nlog.ParseLevel(cfg.LogLevel), cfg.LogFormat == "json")
	if cfg.Log != "" {
		if f, err := openLogFile(cfg.Log); err == nil {
			log.SetOutput(f)
		} else {
			log.Warning("could not open configured log sink, using stderr")
		}
	}

	if workerID, ok := supervisor.IsWorker(); ok {
		return runWorker(cfg, workerID, log)
	}

	return runSupervisor(cmd.Context(), cfg, log, configPath, loader)
}

// runSupervisor re-execs the binary once per configured worker process and
// blocks handling OS signals (§4.I). It also owns the single process-wide
// /metrics listener: workers bind their data port with SO_REUSEPORT and can
// share it safely, but a plain net/http listener has no such sharing, so
// exactly one process — this one — may bind it.
func runSupervisor(ctx context.Context, cfg config.Config, log nlog.Logger, configPath string, loader *config.Loader) error {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	extra := []string{}
	if configPath != "" {
		extra = append(extra, configPath)
	}
	if flagDevMode {
		extra = append(extra, "--dev")
	}

	mtr := metrics.New("edgecache")

	sup := supervisor.New(supervisor.Config{
		WorkerCount:    workers,
		RestartBudget:  supervisor.DefaultConfig(workers).RestartBudget,
		ShutdownGrace:  supervisor.DefaultConfig(workers).ShutdownGrace,
		PinCPUAffinity: true,
		ExtraArgs:      extra,
		Metrics:        mtr,
	}, log, func() {
		log.Info("reloading configuration on SIGHUP")
	})

	if ctx == nil {
		ctx = context.Background()
	}

	if configPath != "" {
		if werr := loader.Watch(func(config.Config) {
			log.Info("reloading configuration on config file change")
			sup.Reload()
		}); werr != nil {
			log.Warning("could not watch config file for changes")
		}
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := mtr.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Error(err, "metrics server exited")
			}
		}()
	}

	return sup.Run(ctx)
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}
