// Command server runs the pageflow HTTP API: the Conversation Gateway and
// Router, Entity Resolver, Blueprint Executor, Patch Engine, and Backend
// Data Client, fronted by the five endpoints of spec §6.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"goa.design/clue/log"

	"github.com/insight-edu/pageflow/internal/config"
	"github.com/insight-edu/pageflow/internal/telemetry"
)

func main() {
	var (
		configF = flag.String("config", "", "Path to an optional pageflow.yaml override file")
		dbgF    = flag.Bool("debug", false, "Enable debug-level logs")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}

	cfg, err := config.Load(*configF)
	if err != nil {
		log.Fatalf(ctx, err, "loading configuration")
	}

	tel := telemetry.Bundle{
		Logger:  telemetry.NewClueLogger(),
		Metrics: telemetry.NewClueMetrics(),
		Tracer:  telemetry.NewClueTracer(),
	}.WithDefaults()

	svc, err := build(ctx, cfg, tel)
	if err != nil {
		log.Fatalf(ctx, err, "wiring service")
	}

	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)

	handleHTTPServer(ctx, cfg.ListenAddr, svc.api, &wg, errc)

	log.Printf(ctx, "exiting (%v)", <-errc)

	cancel()
	svc.stop()
	wg.Wait()
	log.Printf(ctx, "exited")
}
