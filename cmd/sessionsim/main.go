// Sessionsim simulates a candidate's browser client for development. It
// connects to the engine's session socket, opens a monitoring session,
// and streams Opus-encoded synthetic audio so the audio analyzers have
// something to chew on without a real exam running.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"gopkg.in/hraban/opus.v2"

	"github.com/invigilab/go-invigil/pkg/audioio"
	"github.com/invigilab/go-invigil/pkg/protocol"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws/session", "Session socket endpoint")
	sessionID := flag.String("session", "sim-session", "Session ID to open")
	candidateID := flag.String("candidate", "sim-candidate", "Candidate ID to report")
	freq := flag.Float64("freq", 150, "Tone frequency in Hz")
	amp := flag.Float64("amp", 0.3, "Tone amplitude in [0, 1]")
	flag.Parse()

	if err := run(*url, *sessionID, *candidateID, *freq, *amp); err != nil {
		fmt.Fprintf(os.Stderr, "sessionsim: %v\n", err)
		os.Exit(1)
	}
}

func run(url, sessionID, candidateID string, freq, amp float64) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer conn.Close()

	// Drain server replies so acks and errors show up on the console.
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			fmt.Printf("<- %s\n", data)
		}
	}()

	if err := send(conn, protocol.NewHelloMessage(sessionID, candidateID)); err != nil {
		return err
	}

	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.BackendMock
	source := audioio.NewMockSource(cfg, nil, audioio.WithTones(
		audioio.Tone{Frequency: freq, Amplitude: amp},
	))
	if err := source.Start(ctx); err != nil {
		return err
	}
	defer source.Close()

	encoder, err := opus.NewEncoder(cfg.SampleRate, cfg.Channels, opus.AppVoIP)
	if err != nil {
		return fmt.Errorf("failed to create opus encoder: %w", err)
	}

	fmt.Printf("streaming %.0fHz tone to %s as %s/%s\n", freq, url, sessionID, candidateID)

	packet := make([]byte, 4000)
	sent := 0
	for {
		chunk, err := source.Read(ctx)
		if err != nil {
			break
		}

		n, err := encoder.Encode(chunk.Samples, packet)
		if err != nil {
			fmt.Fprintf(os.Stderr, "encode failed: %v\n", err)
			continue
		}

		if err := send(conn, protocol.NewAudioMessage(packet[:n], cfg.SampleRate, cfg.Channels)); err != nil {
			return err
		}

		sent++
		if sent%250 == 0 {
			fmt.Printf("-> %d audio packets\n", sent)
		}

		// The mock source generates on a real-time ticker, so the read
		// loop is already paced; just honor shutdown.
		if ctx.Err() != nil {
			break
		}
	}

	if err := send(conn, protocol.NewStopMessage()); err != nil {
		return err
	}
	fmt.Printf("session closed after %d packets\n", sent)
	return nil
}

func send(conn *websocket.Conn, msg *protocol.Message, err error) error {
	if err != nil {
		return err
	}
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
