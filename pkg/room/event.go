package room

// Event is a session notification. The SDK surfaces a dozen callback
// hooks; everything the rest of the program cares about funnels through
// this one type instead.
type Event interface {
	isEvent()
}

// StateChanged reports a lifecycle transition.
type StateChanged struct {
	From State
	To   State
}

// TrackBridged reports the video track now feeding the pipeline.
type TrackBridged struct {
	TrackID     string
	Participant string
	MimeType    string
}

// TrackEnded reports that the bridged track stopped, either because the
// publisher left or the subscription was torn down. The session goes
// back to waiting for the next video track.
type TrackEnded struct {
	TrackID string
}

// ParticipantJoined reports a remote participant entering the room.
type ParticipantJoined struct {
	Identity string
}

// ParticipantLeft reports a remote participant leaving the room.
type ParticipantLeft struct {
	Identity string
}

func (StateChanged) isEvent()      {}
func (TrackBridged) isEvent()      {}
func (TrackEnded) isEvent()        {}
func (ParticipantJoined) isEvent() {}
func (ParticipantLeft) isEvent()   {}

// Handler receives session events. Implementations must be safe for
// concurrent use and must not block: events are delivered synchronously
// from SDK callback goroutines.
type Handler interface {
	HandleEvent(Event)
}
