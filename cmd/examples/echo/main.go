package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/Atheer-Ganayem/snapframe"
)

var upgrader *snapframe.Upgrader

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	upgrader = snapframe.NewUpgrader(&snapframe.Options{Logger: logger})

	http.HandleFunc("/", handler)

	logger.Info("server listening", "addr", ":8080")
	if err := http.ListenAndServe(":8080", nil); err != nil {
		logger.Error("server stopped", "err", err)
	}
}

func handler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		msg, err := conn.Next()
		if snapframe.IsFatalErr(err) {
			return // Connection closed
		} else if err != nil {
			slog.Warn("non-fatal error", "conn_id", conn.ID(), "err", err)
			continue
		}

		err = conn.Send(context.TODO(), msg)
		if snapframe.IsFatalErr(err) {
			return // Connection closed
		} else if err != nil {
			slog.Warn("non-fatal error", "conn_id", conn.ID(), "err", err)
			continue
		}
	}
}
