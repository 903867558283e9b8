package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"

	_ "gridrealm.dev/internal/authority/wsremote"
	"gridrealm.dev/internal/bridge"
	"gridrealm.dev/internal/intent"
	"gridrealm.dev/internal/world"
)

var directions = []world.Position{
	{X: 0, Y: -1}, {X: 0, Y: 1}, {X: -1, Y: 0}, {X: 1, Y: 0},
	{X: -1, Y: -1}, {X: 1, Y: -1}, {X: -1, Y: 1}, {X: 1, Y: 1},
}

func main() {
	var (
		url      = flag.String("url", "ws://localhost:7070/v1/ws", "ws url")
		name     = flag.String("name", "bot", "account name")
		password = flag.String("password", "bot", "account password")
		every    = flag.Duration("every", time.Second, "step interval")
	)
	flag.Parse()

	logger := logrus.New()
	log := logger.WithField("bot", *name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conn := bridge.Start(ctx, bridge.Config{
		Addr:     *url,
		Username: *name,
		Password: *password,
		Logger:   log,
	})
	defer conn.Close()

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	t := time.NewTicker(*every)
	defer t.Stop()

	var steps int
	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.Done():
			if err := conn.Wait(); err != nil {
				log.WithError(err).Error("session ended")
				os.Exit(1)
			}
			return
		case <-t.C:
		}

		snap := conn.LatestSnapshot()
		if !snap.HasSelf {
			continue
		}
		var in intent.Intent
		if p := intent.PickupHere(snap); p != nil {
			in = p
		} else {
			in = intent.Bump(snap, directions[r.Intn(len(directions))])
		}
		if in == nil {
			continue
		}
		conn.SubmitCommand(in)

		steps++
		if steps%30 == 0 {
			if self, ok := snap.SelfEntity(); ok {
				log.WithField("pos", self.Pos).Info("walking")
			}
			conn.SubmitChat(intent.Say{Recipient: "all", Text: "still wandering"})
		}
	}
}
