// Command ikigai is the interactive multi-provider LLM chat terminal
// (§1, §6): it loads config and credentials, opens the session database
// and log file, wires the provider registry and debug pipe, and runs the
// §4.15 REPL event loop until the user exits or a fatal error occurs.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ikigai-term/ikigai/internal/agent"
	"github.com/ikigai-term/ikigai/internal/config"
	"github.com/ikigai-term/ikigai/internal/debugpipe"
	"github.com/ikigai-term/ikigai/internal/llm"
	"github.com/ikigai-term/ikigai/internal/llm/provider"
	"github.com/ikigai-term/ikigai/internal/llm/provider/anthropic"
	"github.com/ikigai-term/ikigai/internal/llm/provider/google"
	"github.com/ikigai-term/ikigai/internal/llm/provider/openai"
	"github.com/ikigai-term/ikigai/internal/logger"
	"github.com/ikigai-term/ikigai/internal/metrics"
	"github.com/ikigai-term/ikigai/internal/repl"
	"github.com/ikigai-term/ikigai/internal/session"
	"github.com/ikigai-term/ikigai/internal/terminal"
)

func main() {
	os.Exit(run())
}

// run performs startup in the order §6/§7 require: config and
// credentials are resolved before anything touches the terminal or the
// database, so a misconfiguration exits cleanly without leaving the tty
// in raw mode. DB and log-directory failures at startup are fatal.
func run() int {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ikigai: cannot determine working directory:", err)
		return 1
	}

	cfgPathResult := config.DefaultPath()
	if cfgPathResult.Err != nil {
		fmt.Fprintln(os.Stderr, "ikigai:", cfgPathResult.Err)
		return 1
	}
	cfgResult := config.Load(cfgPathResult.Value)
	if cfgResult.Err != nil {
		fmt.Fprintln(os.Stderr, "ikigai: config:", cfgResult.Err)
		return 1
	}
	cfg := cfgResult.Value

	credsPathResult := config.CredentialsPath()
	if credsPathResult.Err != nil {
		fmt.Fprintln(os.Stderr, "ikigai:", credsPathResult.Err)
		return 1
	}
	credSource := config.FileCredentialSource{Path: credsPathResult.Value}

	log, logErr := logger.New(cwd, logger.ParseLevel("info"), "text")
	if logErr != nil {
		fmt.Fprintln(os.Stderr, "ikigai: failed to open log file:", logErr)
		return 1
	}
	defer log.Close()

	dbPath := cwd + "/.ikigai/session.db"
	if mkErr := os.MkdirAll(cwd+"/.ikigai", 0o755); mkErr != nil {
		log.Slog().Error("failed to create .ikigai directory", "error", mkErr)
		return 1
	}
	store, kerr := session.Open(dbPath)
	if kerr != nil {
		log.Slog().Error("failed to open session database", "error", kerr)
		return 1
	}
	defer store.Close()

	registry := provider.NewRegistry()
	registry.Register("openai", openai.New)
	registry.Register("anthropic", anthropic.New)
	registry.Register("google", google.New)

	collector, promReg := metrics.NewCollector()
	metricsServer := metrics.NewServer(cfg.ListenAddress, cfg.ListenPort, promReg)
	metricsErrCh := metricsServer.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(ctx)
	}()

	// The metrics server and the REPL loop are supervised together
	// (teacher's workflowagent parallel-branch pattern): the loop's exit
	// cancels supervisorCtx so the metrics watcher stops too, and an
	// early metrics bind failure surfaces from Wait() without killing the
	// REPL loop itself.
	supervisorCtx, cancelSupervisor := context.WithCancel(context.Background())
	supervisor, supervisorCtx := errgroup.WithContext(supervisorCtx)
	supervisor.Go(func() error {
		select {
		case err := <-metricsErrCh:
			return err
		case <-supervisorCtx.Done():
			return nil
		}
	})

	debug := debugpipe.NewManager()
	defer debug.Close()

	root := agent.New("openai", cfg.OpenAIModel, llm.ThinkingMed, cfg.OpenAIMaxCompletionTokens)
	if cfg.OpenAISystemMessage != nil {
		root.SystemMessage = *cfg.OpenAISystemMessage
	}
	if kerr := store.EnsureRootAgent(root); kerr != nil {
		log.Slog().Error("failed to persist root agent", "error", kerr)
		return 1
	}

	term, kerr := terminal.Open()
	if kerr != nil {
		log.Slog().Error("failed to open terminal", "error", kerr)
		return 1
	}
	defer term.Close()

	loop := repl.New(term, registry, debug, root, cfg.MaxToolTurns)

	if kerr := loop.RepaintNow(); kerr != nil {
		log.Slog().Error("initial repaint failed", "error", kerr)
		return 1
	}

	runLoop(loop, term, log.Slog(), collector, credSource, registry)
	cancelSupervisor()

	if err := supervisor.Wait(); err != nil {
		log.Slog().Error("metrics server failed", "error", err)
	}

	return 0
}

// runLoop drives §4.15's single-threaded cooperative event loop: read
// stdin bytes, feed the input parser, dispatch slash commands or submit
// plain text, and repaint after every state change. Tool execution and
// streaming run on their own goroutines; the loop never blocks on them,
// it only observes completion through the active agent's RunState.
func runLoop(loop *repl.Loop, term *terminal.Terminal, log *slog.Logger, collector *metrics.Collector, credSource config.FileCredentialSource, registry *provider.Registry) {
	buf := make([]byte, 1)
	for {
		n, readErr := term.Read(buf)
		if readErr != nil || n == 0 {
			return
		}

		text, submitted := loop.FeedByte(buf[0])
		if !submitted {
			if loop.PollToolCompletion() {
				go dispatchRequest(loop, log, collector, credSource, registry)
			}
			if kerr := loop.RepaintNow(); kerr != nil {
				log.Error("repaint failed", "error", kerr)
			}
			continue
		}

		outcome, handled, kerr := loop.Submit(text)
		if kerr != nil {
			log.Warn("command dispatch failed", "error", kerr)
		}
		if handled && outcome.KillRequested {
			return
		}
		if handled {
			if kerr := loop.RepaintNow(); kerr != nil {
				log.Error("repaint failed", "error", kerr)
			}
			continue
		}

		go dispatchRequest(loop, log, collector, credSource, registry)

		if kerr := loop.RepaintNow(); kerr != nil {
			log.Error("repaint failed", "error", kerr)
		}
	}
}

// dispatchRequest resolves the active agent's provider and streams one
// request, recording outcome metrics (§6 "debug/metrics mux").
func dispatchRequest(loop *repl.Loop, log *slog.Logger, collector *metrics.Collector, credSource config.FileCredentialSource, registry *provider.Registry) {
	providerName, req, ok := loop.PendingRequest()
	if !ok {
		return
	}

	start := time.Now()
	created := registry.Create(providerName, credSource)
	if created.Err != nil {
		collector.RequestsTotal.WithLabelValues(providerName, "error").Inc()
		loop.Notify(created.Err.Message)
		loop.FinishWaiting("")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	outcome := "ok"
	if kerr := loop.StreamOnto(ctx, req, created.Value); kerr != nil {
		outcome = "error"
		log.Warn("stream request failed", "error", kerr)
	}
	collector.RequestsTotal.WithLabelValues(providerName, outcome).Inc()
	collector.StreamDurations.WithLabelValues(providerName).Observe(time.Since(start).Seconds())
}
