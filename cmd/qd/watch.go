package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/quorum/internal/events"
	"github.com/alfredjeanlab/quorum/internal/model"
	"github.com/alfredjeanlab/quorum/internal/ui"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Print decision events as they happen",
	GroupID: "decisions",
	Long: `Print decision and vote events as they happen. With --nats-url (or
QUORUM_NATS_URL) events come straight from the bus; otherwise qd follows
the server's event stream.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats-url")
		topic, _ := cmd.Flags().GetString("topic")
		room, _ := cmd.Flags().GetString("room")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w := cmd.OutOrStdout()
		show := func(msg events.Message) {
			printEvent(w, msg, room)
		}
		if natsURL != "" {
			return watchNATS(ctx, natsURL, topic, show)
		}
		return quorumClient.StreamEvents(ctx, []string{topic}, "", func(_ string, msg events.Message) {
			show(msg)
		})
	},
}

func watchNATS(ctx context.Context, natsURL, topic string, fn func(events.Message)) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(topic)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			fn(msg)
		}
	}
}

// printEvent writes one line for msg, or a JSON line in --json mode. Events
// for rooms other than room are skipped when room is set.
func printEvent(w io.Writer, msg events.Message, room string) {
	line, roomID, err := formatEvent(msg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "skipping %s: %v\n", msg.Topic, err)
		return
	}
	if room != "" && roomID != room {
		return
	}
	if jsonOutput {
		fmt.Fprintf(w, "{\"topic\":%q,\"event\":%s}\n", msg.Topic, msg.Data)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ui.RenderMuted(time.Now().Format("15:04:05")), line)
}

// formatEvent renders msg as a single human-readable line and reports the
// room it belongs to.
func formatEvent(msg events.Message) (line, roomID string, err error) {
	switch msg.Topic {
	case events.TopicDecisionCreated:
		var ev events.DecisionCreated
		if err := decodeEvent(msg, &ev, &ev.Decision); err != nil {
			return "", "", err
		}
		d := ev.Decision
		return fmt.Sprintf("%s %s %s by %s: %s", ui.RenderAccent("submitted"), d.ID,
			ui.RenderStatus(d.Status), d.ProposerID, d.Proposal), d.RoomID, nil

	case events.TopicDecisionResolved:
		var ev events.DecisionResolved
		if err := decodeEvent(msg, &ev, &ev.Decision); err != nil {
			return "", "", err
		}
		line := fmt.Sprintf("%s %s %s", ui.RenderAccent("resolved"), ev.Decision.ID, resultOf(ev.Decision))
		if ev.ResolvedBy != "" {
			line += " (by " + ev.ResolvedBy + ")"
		}
		return line, ev.Decision.RoomID, nil

	case events.TopicDecisionObjected:
		var ev events.DecisionObjected
		if err := decodeEvent(msg, &ev, &ev.Decision); err != nil {
			return "", "", err
		}
		return fmt.Sprintf("%s %s %s", ui.RenderAccent("objected"), ev.Decision.ID, resultOf(ev.Decision)),
			ev.Decision.RoomID, nil

	case events.TopicVoteCast:
		var ev events.VoteCast
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return "", "", fmt.Errorf("decoding event: %w", err)
		}
		if ev.Vote == nil {
			return "", "", fmt.Errorf("event has no vote")
		}
		return fmt.Sprintf("%s %s %s on %s", ui.RenderAccent("vote"), ev.Vote.VoterID,
			ui.RenderChoice(ev.Vote.Choice), ev.Vote.DecisionID), ev.RoomID, nil
	}
	return msg.Topic, "", nil
}

func decodeEvent(msg events.Message, ev any, d **model.Decision) error {
	if err := json.Unmarshal(msg.Data, ev); err != nil {
		return fmt.Errorf("decoding event: %w", err)
	}
	if *d == nil {
		return fmt.Errorf("event has no decision")
	}
	return nil
}

func resultOf(d *model.Decision) string {
	s := ui.RenderStatus(d.Status)
	if d.Result != "" {
		s += ": " + d.Result
	}
	return s
}

func init() {
	watchCmd.Flags().String("nats-url", os.Getenv("QUORUM_NATS_URL"), "NATS server URL (default: follow the server's event stream)")
	watchCmd.Flags().String("topic", events.TopicAll, "topic pattern to watch")
	watchCmd.Flags().String("room", "", "only show events for this room")
}
