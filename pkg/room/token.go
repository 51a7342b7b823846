package room

import (
	"fmt"

	"github.com/livekit/protocol/auth"
)

// BuildToken creates a join token scoped to a single room. The server
// validates it against the same API key and secret pair.
func BuildToken(apiKey, apiSecret, roomName, identity string) (string, error) {
	if apiKey == "" || apiSecret == "" {
		return "", fmt.Errorf("%w: missing API credentials", ErrInvalidConfig)
	}
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	at := auth.NewAccessToken(apiKey, apiSecret).
		SetVideoGrant(grant).
		SetIdentity(identity)
	token, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("room: build token: %w", err)
	}
	return token, nil
}
