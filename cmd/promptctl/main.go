// promptctl sends a prompt update into a room over the data channel.
// Every participant running the bridge picks it up on its next sampled
// frame.
//
// Usage:
//
//	promptctl [flags] <prompt text>
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/ivid/go-streamdiff/internal/config"
	"github.com/ivid/go-streamdiff/internal/log"
	"github.com/ivid/go-streamdiff/pkg/prompt"
	"github.com/ivid/go-streamdiff/pkg/room"
)

func main() {
	godotenv.Load()

	url := flag.String("url", "", "LiveKit server URL (overrides LIVEKIT_URL)")
	roomName := flag.String("room", config.DefaultRoom, "Room to send the update to")
	topic := flag.String("topic", "prompt", "Data topic for the update")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: promptctl [flags] <prompt text>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	promptText := strings.Join(flag.Args(), " ")

	log.Init("info")

	serverURL := config.ServerURL()
	if *url != "" {
		serverURL = *url
	}

	// Identities must be unique per room; a duplicate would kick the
	// other participant.
	identity := "promptctl-" + uuid.NewString()[:8]
	token, err := room.BuildToken(config.APIKey(), config.APISecret(), *roomName, identity)
	if err != nil {
		log.Error("failed to build token", "error", err)
		os.Exit(1)
	}

	rm, err := lksdk.ConnectToRoomWithToken(serverURL, token, &lksdk.RoomCallback{},
		lksdk.WithAutoSubscribe(false))
	if err != nil {
		log.Error("failed to connect", "url", serverURL, "room", *roomName, "error", err)
		os.Exit(1)
	}
	defer rm.Disconnect()

	payload, err := prompt.EncodeUpdate(promptText)
	if err != nil {
		log.Error("failed to encode update", "error", err)
		os.Exit(1)
	}
	if err := rm.LocalParticipant.PublishDataPacket(lksdk.UserData(payload),
		lksdk.WithDataPublishTopic(*topic),
		lksdk.WithDataPublishReliable(true)); err != nil {
		log.Error("failed to publish update", "error", err)
		os.Exit(1)
	}

	// Give the data channel a moment to flush before disconnecting.
	time.Sleep(500 * time.Millisecond)
	log.Info("prompt sent", "room", *roomName, "prompt", promptText)
}
