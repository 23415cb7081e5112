package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Atheer-Ganayem/snapframe"
)

var upgrader *snapframe.Upgrader

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	upgrader = snapframe.NewUpgrader(&snapframe.Options{
		MaxMessageSize: snapframe.DefaultMaxMessageSize * 16, // autobahn tests messages up to 16MB
		WriteWait:      10 * time.Second,
		Logger:         logger,
	})

	http.HandleFunc("/", handler)

	logger.Info("server listening", "addr", ":9001")
	if err := http.ListenAndServe(":9001", nil); err != nil {
		logger.Error("server stopped", "err", err)
	}
}

func handler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r)
	if err != nil {
		return
	}
	defer conn.Close()

	sender := conn.Sender()
	for {
		msg, err := conn.Next()
		if snapframe.IsFatalErr(err) {
			return
		} else if err != nil {
			// invalid utf8 is answered with a 1007 close, the next call ends the loop
			continue
		}

		if err := sender.Send(context.Background(), msg); snapframe.IsFatalErr(err) {
			upgrader.Logger.Debug("send failed", "conn_id", conn.ID(), "err", err)
			return
		}
	}
}
