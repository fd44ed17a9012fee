package bitstate

// Match bits.
const (
	MatchOpen     Word = 1 << 0
	MatchRunning  Word = 1 << 1
	MatchSubPhase Word = 1 << 2 // collect phase in dead drop
	MatchEnded    Word = 1 << 7
)

// Player bits. PlayerFlag and PlayerCarrying are reused per mode:
// dead drop (dropped, carrying), chase the rabbit (is rabbit, -),
// capture the flag (tagged, has flag).
const (
	PlayerJoined    Word = 1 << 0
	PlayerReady     Word = 1 << 1
	PlayerPlayed    Word = 1 << 2
	PlayerFlag      Word = 1 << 3
	PlayerCarrying  Word = 1 << 4
	PlayerDelivered Word = 1 << 5
)

// Composite player states.
const (
	PlayerDropped       = PlayerJoined | PlayerReady | PlayerPlayed | PlayerFlag
	PlayerEnRoute       = PlayerDropped | PlayerCarrying
	PlayerHasDelivered  = PlayerEnRoute | PlayerDelivered
	PlayerRabbit        = PlayerJoined | PlayerReady | PlayerPlayed | PlayerFlag
	PlayerParticipating = PlayerJoined | PlayerReady | PlayerPlayed
)

// Object bits. Cameras use the low three bits as a one-hot phase.
const (
	ObjectCameraWarming Word = 1 << 0
	ObjectCameraActive  Word = 1 << 1
	ObjectCameraIdle    Word = 1 << 2
	ObjectCollected     Word = 1 << 1
	ObjectConsumed      Word = 1 << 7

	ObjectCameraMask = ObjectCameraWarming | ObjectCameraActive | ObjectCameraIdle
)

// InLobby reports an open match that has neither started nor ended.
func InLobby(w Word) bool {
	return Matches(w, MatchEnded|MatchRunning|MatchOpen, MatchOpen)
}

// InProgress reports a running match that has not ended.
func InProgress(w Word) bool {
	return Matches(w, MatchEnded|MatchRunning, MatchRunning)
}

// Ended reports whether the sticky ended bit is set.
func Ended(w Word) bool { return w.Has(MatchEnded) }

// Listed reports whether a player row belongs in a match snapshot: currently
// joined or has played at some point.
func Listed(w Word) bool { return w&(PlayerJoined|PlayerPlayed) != 0 }
