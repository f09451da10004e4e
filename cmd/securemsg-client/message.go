package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/securemsg/channel"
	"github.com/sage-x-project/securemsg/core/message"
	"github.com/sage-x-project/securemsg/core/message/order"
	"github.com/sage-x-project/securemsg/relay"
)

var flagMessageText string

var messageCmd = &cobra.Command{
	Use:   "message",
	Short: "Send and receive sealed messages over a confirmed session",
	Long: `message seals and opens application payloads with the channel keys a
completed handshake derived, using the relay only as an encrypted-blob
relay — it never sees plaintext or key material.`,
}

var messageSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Seal and send --text over --session",
	RunE:  runMessageSend,
}

var messageRecvCmd = &cobra.Command{
	Use:   "recv",
	Short: "Fetch and decrypt new messages for --session from the conversation with its peer",
	RunE:  runMessageRecv,
}

func init() {
	rootCmd.AddCommand(messageCmd)
	messageCmd.AddCommand(messageSendCmd)
	messageCmd.AddCommand(messageRecvCmd)

	messageSendCmd.Flags().StringVar(&flagSessionID, "session", "", "Session id (required)")
	messageSendCmd.Flags().StringVar(&flagMessageText, "text", "", "Plaintext to send (required)")
	messageRecvCmd.Flags().StringVar(&flagSessionID, "session", "", "Session id (required)")
}

func toFixed32(b []byte) ([32]byte, error) {
	var out [32]byte
	if len(b) != 32 {
		return out, fmt.Errorf("expected a 32-byte key, got %d bytes", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func runMessageSend(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	if flagSessionID == "" {
		return fmt.Errorf("--session is required")
	}
	if flagMessageText == "" {
		return fmt.Errorf("--text is required")
	}
	ctx := context.Background()

	store, err := newStateStore()
	if err != nil {
		return err
	}
	st, err := store.load(flagSessionID)
	if err != nil {
		return fmt.Errorf("load local session state: %w", err)
	}
	if len(st.ChannelKey) == 0 {
		return fmt.Errorf("session %s has not completed the handshake yet", flagSessionID)
	}
	sendKey, err := toFixed32(st.ChannelKey)
	if err != nil {
		return fmt.Errorf("channel key: %w", err)
	}

	ch := channel.NewResuming(flagSessionID, sendKey, st.SendSeq)
	env, err := ch.Seal([]byte(flagMessageText))
	if err != nil {
		return fmt.Errorf("seal message: %w", err)
	}

	var resp relay.SendMessageResponse
	if err := post(ctx, newRelayClient(), "/messages", relay.SendMessageRequest{
		To:             st.PeerID,
		SessionID:      flagSessionID,
		Ciphertext:     env.CiphertextB64,
		IV:             env.IVB64,
		MessageType:    string(env.MessageType),
		SequenceNumber: env.SequenceNumber,
		Nonce:          env.NonceB64,
		Timestamp:      env.Timestamp,
	}, &resp); err != nil {
		return err
	}

	st.SendSeq = ch.LastSequence()
	if err := store.save(flagSessionID, st); err != nil {
		return fmt.Errorf("save local session state: %w", err)
	}

	fmt.Printf("sent message %s (seq %d)\n", resp.MessageID, env.SequenceNumber)
	return nil
}

func runMessageRecv(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	if flagSessionID == "" {
		return fmt.Errorf("--session is required")
	}
	ctx := context.Background()

	store, err := newStateStore()
	if err != nil {
		return err
	}
	st, err := store.load(flagSessionID)
	if err != nil {
		return fmt.Errorf("load local session state: %w", err)
	}
	if len(st.ChannelKey) == 0 {
		return fmt.Errorf("session %s has not completed the handshake yet", flagSessionID)
	}
	recvKey, err := toFixed32(st.ChannelKey)
	if err != nil {
		return fmt.Errorf("channel key: %w", err)
	}

	var conversation []relay.ConversationMessage
	if err := get(ctx, newRelayClient(), "/messages/conversation/"+st.PeerID, &conversation); err != nil {
		return err
	}

	ch := channel.New(flagSessionID, recvKey)
	// ordering tracks strict sequence/timestamp monotonicity within this
	// single fetched batch, catching a reordered or duplicated page from
	// the relay that st.RecvSeq's high-water mark alone would miss.
	ordering := order.NewManager()
	printed := 0
	for _, m := range conversation {
		if m.SessionID != flagSessionID || m.SequenceNumber <= st.RecvSeq {
			continue
		}
		hdr := message.MessageControlHeader{
			Sequence:  m.SequenceNumber,
			Timestamp: time.UnixMilli(m.Timestamp),
		}
		if err := ordering.ProcessMessage(hdr, flagSessionID); err != nil {
			fmt.Printf("[seq %d] <out of order, dropped: %v>\n", m.SequenceNumber, err)
			continue
		}
		plaintext, err := ch.Open(channel.Envelope{
			SessionID:      m.SessionID,
			CiphertextB64:  m.Ciphertext,
			IVB64:          m.IV,
			SequenceNumber: m.SequenceNumber,
			Timestamp:      m.Timestamp,
			MessageType:    channel.MessageType(m.MessageType),
		})
		if err != nil {
			fmt.Printf("[seq %d] <failed to decrypt: %v>\n", m.SequenceNumber, err)
			continue
		}
		fmt.Printf("[seq %d] %s\n", m.SequenceNumber, plaintext)
		if m.SequenceNumber > st.RecvSeq {
			st.RecvSeq = m.SequenceNumber
		}
		printed++
	}

	if err := store.save(flagSessionID, st); err != nil {
		return fmt.Errorf("save local session state: %w", err)
	}
	if printed == 0 {
		fmt.Println("no new messages")
	}
	return nil
}
