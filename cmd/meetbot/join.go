package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/npezzotti/go-meet/internal/client"
	"github.com/npezzotti/go-meet/internal/types"
	"github.com/spf13/cobra"
)

var (
	flagName     string
	flagSay      string
	flagDuration time.Duration
	flagICE      []string
)

var joinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Join a room and stay until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if flagDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, flagDuration)
			defer cancel()
		}

		return joinRoom(ctx, cmd.OutOrStdout(), args[0])
	},
}

func init() {
	joinCmd.Flags().StringVar(&flagName, "name", "meetbot", "display name")
	joinCmd.Flags().StringVar(&flagSay, "say", "", "chat message to send once joined")
	joinCmd.Flags().DurationVar(&flagDuration, "duration", 0, "leave after this long (0 waits for a signal)")
	joinCmd.Flags().StringSliceVar(&flagICE, "ice", []string{"stun:stun.l.google.com:19302"}, "ICE server URLs")
}

func joinRoom(ctx context.Context, out io.Writer, roomId string) error {
	logger := newLogger()

	wsURL, err := newAPIClient().WebsocketURL()
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, err := client.Dial(dialCtx, wsURL, flagToken, logger)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	// pion calls back on its own goroutines; everything is printed from the
	// loop below so out has a single writer
	messages := make(chan peerMessage, 16)
	opened := make(chan string, 16)
	done := make(chan struct{})

	neg := client.NewPionNegotiator(flagICE, logger)
	neg.OnMessage = func(remoteId string, data []byte) {
		select {
		case messages <- peerMessage{remoteId: remoteId, data: data}:
		case <-done:
		}
	}
	neg.OnOpen = func(remoteId string) {
		select {
		case opened <- remoteId:
		case <-done:
		}
	}
	peers := client.NewPeerSet(conn, neg, logger)
	defer peers.Close()
	defer close(done)

	if err := conn.Join(roomId, flagName); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	events := make(chan client.Envelope)
	errs := make(chan error, 1)
	go func() {
		for {
			env, err := conn.Receive()
			if err != nil {
				errs <- err
				return
			}
			select {
			case events <- env:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			if err := conn.Leave(); err != nil {
				logger.Debug("leave", "error", err)
			}
			fmt.Fprintln(out, "left", roomId)
			return nil
		case err := <-errs:
			return fmt.Errorf("connection lost: %w", err)
		case m := <-messages:
			fmt.Fprintf(out, "[%s] %s\n", m.remoteId, m.data)
		case remoteId := <-opened:
			greetPeer(out, peers, remoteId, flagSay)
		case env := <-events:
			if err := peers.Handle(env); err != nil {
				logger.Warn("peer negotiation", "type", env.Type, "error", err)
			}
			if err := printEvent(out, conn, roomId, env); err != nil {
				return err
			}
		}
	}
}

type peerMessage struct {
	remoteId string
	data     []byte
}

type peerSender interface {
	Send(remoteId, text string) error
}

// greetPeer sends text over the data channel that just opened to remoteId.
func greetPeer(out io.Writer, peers peerSender, remoteId, text string) {
	fmt.Fprintf(out, "data channel open with %s\n", remoteId)
	if text == "" {
		return
	}
	if err := peers.Send(remoteId, text); err != nil {
		fmt.Fprintf(out, "greet %s: %v\n", remoteId, err)
	}
}

// printEvent reports room activity. The whiteboard snapshot is the last
// event of a join, so that is when --say is sent.
func printEvent(out io.Writer, conn *client.Conn, roomId string, env client.Envelope) error {
	switch env.Type {
	case client.EventWhiteboardData:
		fmt.Fprintf(out, "joined %s as %s (%s)\n", roomId, flagName, conn.Id())
		if flagSay != "" {
			return conn.Chat(flagSay)
		}
	case client.EventExistingUsers:
		var users []types.Participant
		if env.Decode(&users) == nil {
			for _, u := range users {
				fmt.Fprintf(out, "present: %s (%s)\n", u.DisplayName, u.ConnectionId)
			}
		}
	case client.EventUserJoined, client.EventUserLeft:
		var u types.Participant
		if env.Decode(&u) == nil {
			verb := "joined"
			if env.Type == client.EventUserLeft {
				verb = "left"
			}
			fmt.Fprintf(out, "%s %s (%s)\n", u.DisplayName, verb, u.ConnectionId)
		}
	case client.EventChatHistory:
		var history []types.ChatMessage
		if env.Decode(&history) == nil {
			for _, m := range history {
				fmt.Fprintf(out, "%s <%s> %s\n", m.Timestamp.Format(time.Kitchen), m.SenderName, m.Text)
			}
		}
	case client.EventChatMessage:
		var m types.ChatMessage
		if env.Decode(&m) == nil {
			fmt.Fprintf(out, "%s <%s> %s\n", m.Timestamp.Format(time.Kitchen), m.SenderName, m.Text)
		}
	case client.EventError:
		var e client.ErrorPayload
		if env.Decode(&e) == nil {
			if e.Event == "join-room" {
				return fmt.Errorf("join rejected: %s", e.Message)
			}
			fmt.Fprintf(out, "error: %s (%s)\n", e.Message, e.Code)
		}
	}
	return nil
}
