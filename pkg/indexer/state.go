package indexer

import "time"

// State is the indexer lifecycle state.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// SyncState is a point-in-time snapshot of sync progress, reported via the
// status endpoint and embedded in the stats payload.
type SyncState struct {
	State              State     `json:"state"`
	Connected          bool      `json:"connected"`
	CurrentChainHeight uint64    `json:"currentChainHeight"`
	LastSyncedHeight   uint64    `json:"lastSyncedHeight"`
	ProgressPercent    float64   `json:"progressPercent"`
	LastError          string    `json:"lastError,omitempty"`
	LastPassAt         time.Time `json:"lastPassAt,omitempty"`
	Endpoint           string    `json:"rpcEndpoint,omitempty"`
}

// progress computes the synced fraction as a percentage, 100 when caught up.
func progress(synced, head uint64) float64 {
	if head == 0 {
		return 0
	}
	if synced >= head {
		return 100
	}
	return float64(synced) / float64(head) * 100
}
