// Command wampd is a minimal WAMP v1 router: every WebSocket connection
// gets a session on a shared pubsub bus, so connected peers can publish and
// subscribe to each other. The sessions have no registered procedures, so
// every CALL is answered with a CALLERROR.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"goa.design/clue/log"

	"goa.design/wamp/pubsub"
	"goa.design/wamp/session"
	"goa.design/wamp/telemetry"
	"goa.design/wamp/transport/ws"
)

func main() {
	var (
		configF = flag.String("config", "", "Path to YAML config file")
		listenF = flag.String("listen", "", "HTTP listen address (overrides config)")
		dbgF    = flag.Bool("debug", false, "Enable debug logs")
	)
	flag.Parse()

	// Setup logger.
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))

	cfg, err := loadConfig(*configF)
	if err != nil {
		log.Errorf(ctx, err, "invalid configuration")
		os.Exit(1)
	}
	if *listenF != "" {
		cfg.Listen = *listenF
	}
	if *dbgF || cfg.Debug {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}

	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewClueMetrics()
	registry := pubsub.NewRegistry(pubsub.WithLogger(logger), pubsub.WithMetrics(metrics))
	bus := registry.Named(cfg.Bus)

	upgrader := websocket.Upgrader{
		// The router is a demo surface; accept any origin.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Errorf(ctx, err, "websocket upgrade failed")
			return
		}
		sess := session.New(
			session.WithBus(bus),
			session.WithLogger(logger),
			session.WithMetrics(metrics),
		)
		peer := ws.NewPeer(conn, sess, ws.WithLogger(logger))
		defer peer.Close()
		log.Print(ctx, log.KV{K: "msg", V: "peer connected"}, log.KV{K: "session", V: sess.ID()})
		if err := peer.Announce(); err != nil {
			log.Errorf(ctx, err, "welcome failed")
			return
		}
		if err := peer.Run(r.Context()); err != nil {
			log.Errorf(ctx, err, "peer terminated")
		}
		log.Print(ctx, log.KV{K: "msg", V: "peer disconnected"}, log.KV{K: "session", V: sess.ID()})
	})

	srv := &http.Server{Addr: cfg.Listen, Handler: mux}

	errc := make(chan error, 1)
	go func() {
		log.Print(ctx, log.KV{K: "msg", V: "listening"}, log.KV{K: "addr", V: cfg.Listen}, log.KV{K: "bus", V: cfg.Bus})
		errc <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		log.Errorf(ctx, err, "server failed")
	case sig := <-stop:
		log.Print(ctx, log.KV{K: "msg", V: "shutting down"}, log.KV{K: "signal", V: sig.String()})
	}
	_ = srv.Shutdown(ctx)
}
