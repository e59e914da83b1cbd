// Command media-server is the process entrypoint: flag parsing, dependency
// wiring, and graceful shutdown. Grounded on the teacher's main.go (the
// logtostderr/glog setup, flag.String/flag.Bool cli population) and
// cmd/http-server/http-server.go (the httprouter-wiring + ListenAndServe
// shape), generalized to this service's much smaller dependency set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/capsoftware/cap-media-server/clients"
	"github.com/capsoftware/cap-media-server/config"
	"github.com/capsoftware/cap-media-server/handlers"
	"github.com/capsoftware/cap-media-server/job"
	"github.com/capsoftware/cap-media-server/loopback"
	"github.com/capsoftware/cap-media-server/log"
	"github.com/capsoftware/cap-media-server/subprocess"
)

func main() {
	if err := flag.Set("logtostderr", "true"); err != nil {
		glog.Fatal(err)
	}

	cli := config.Cli{}
	defaultPort := config.DefaultPort
	if v, err := strconv.Atoi(os.Getenv("PORT")); err == nil && v > 0 {
		defaultPort = v
	}
	port := flag.Int("port", defaultPort, "port to listen on (defaults to $PORT when set)")
	flag.BoolVar(&cli.CanvasRenderer, "canvas-renderer", os.Getenv("CAP_CANVAS_RENDERER") != "" && os.Getenv("CAP_CANVAS_RENDERER") != "0" && os.Getenv("CAP_CANVAS_RENDERER") != "false", "use the camera-compositor pipeline for /video/editor/process renders")
	canvasBinary := flag.String("canvas-binary", "camera-compositor", "path to the camera-compositor binary used by the canvas render pipeline")
	flag.StringVar(&cli.HostAliasOverride, "loopback-host-alias", "", "override hostname substituted for loopback addresses when running containerized")
	flag.StringVar(&cli.LoopbackMarkerPath, "loopback-marker-path", "/.dockerenv", "path whose existence marks this process as containerized, per spec §4.11")
	privateBucketURL := flag.String("private-bucket-url", "", "base URL of internal storage; parsed into config.Cli.PrivateBucketURL, which no request path reads")
	flag.Parse()

	// handlers' canvasEnabled reads CAP_CANVAS_RENDERER on every editor
	// render, so the resolved flag value is written back to it.
	if cli.CanvasRenderer {
		_ = os.Setenv("CAP_CANVAS_RENDERER", "1")
	} else {
		_ = os.Unsetenv("CAP_CANVAS_RENDERER")
	}

	cli.Port = *port
	cli.Version = config.Version
	if *privateBucketURL != "" {
		parsed, err := url.Parse(*privateBucketURL)
		if err != nil {
			glog.Fatalf("invalid -private-bucket-url: %v", err)
		}
		cli.PrivateBucketURL = parsed
	}

	pool := subprocess.NewPool()
	webhookClient := clients.NewWebhookClient()
	registry := job.NewRegistry(webhookClient)
	bridge := loopback.Detect(cli)
	collection := handlers.New(pool, registry, bridge, *canvasBinary)
	router := handlers.NewRouter(collection)

	registry.StartTTLSweep("startup")

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cli.Port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		glog.Infof("media-server version %s listening on %s", config.Version, srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Fatalf("server exited: %v", err)
		}
	case <-ctx.Done():
		log.LogNoRequestID("shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			glog.Errorf("graceful shutdown failed: %v", err)
		}
		registry.Stop()
	}
}
