package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/Atheer-Ganayem/snapframe"
)

var manager *snapframe.Manager[string]

func main() {
	upgrader := snapframe.NewUpgrader(&snapframe.Options{
		MessagesPerSecond: 5,
		Logger:            slog.New(slog.NewTextHandler(os.Stderr, nil)),
	})
	upgrader.Use(rejectDuplicateNames)

	manager = snapframe.NewManager[string](upgrader)
	manager.OnDisconnect = onDisconnect

	srv := &http.Server{Addr: ":8080", Handler: http.HandlerFunc(handler)}
	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-ctx.Done()

	manager.Shutdown(context.Background())
	srv.Close()
}

func handler(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	conn, err := manager.Connect(name, w, r)
	if err != nil {
		return
	}
	defer manager.Unregister(name)

	manager.BroadcastText(context.TODO(), name+" connected", name)

	for {
		msg, err := conn.Next()
		if snapframe.IsFatalErr(err) {
			return // Connection closed
		} else if err != nil {
			slog.Warn("non-fatal error", "name", name, "err", err)
			continue
		}
		if !msg.IsText() {
			continue
		}

		// Broadcast message to all except sender
		_, err = manager.BroadcastText(context.TODO(), fmt.Sprintf("%s: %s", name, msg.Text()), name)
		if err != nil {
			slog.Warn("broadcast failed", "err", err)
		}
	}
}

func rejectDuplicateNames(w http.ResponseWriter, r *http.Request) error {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		return snapframe.NewMiddlewareErr(http.StatusBadRequest, "username cannot be empty.")
	}
	if _, exists := manager.GetConn(name); exists {
		return snapframe.NewMiddlewareErr(http.StatusBadRequest, "username already exists, choose another one.")
	}

	return nil
}

func onDisconnect(name string, conn *snapframe.Conn) {
	manager.BroadcastText(context.TODO(), name+" disconnected", name)
}
