// Package debate contains the turn scheduler for multi-provider
// discussions. The Runner owns round/turn state, sequences prompt
// composition, history framing, and gateway calls, applies the
// error-threshold policy, and reports every observable effect through the
// Callbacks capability. Nothing calls back into the Runner.
package debate

import (
	"context"
	"time"

	"github.com/colloquy-dev/colloquy/internal/core"
)

// pollInterval is how often the scheduler re-reads status while paused.
const pollInterval = 500 * time.Millisecond

// Callbacks is the capability interface the host hands to the Runner. The
// host owns the transcript and the lifecycle status; the Runner only reads
// and appends through this interface.
//
// Messages must always return the current log, including interjections
// appended externally at any time; the Runner never caches a snapshot.
// A multi-threaded host must serialize log writes and provide
// read-your-writes consistency between Append and the next Messages call.
type Callbacks interface {
	// Append commits one message. The commit is atomic: a message is fully
	// appended, including its error state, or not at all.
	Append(msg core.Message)

	SetStatus(s core.Status)
	SetRoundAndTurn(round, turnIndex int)

	// SetLoadingProvider marks the provider whose call is in flight.
	// The empty string clears the marker.
	SetLoadingProvider(id string)

	// SetCountdown reports pacing progress in seconds. -1 means the run is
	// awaiting a manual confirmation.
	SetCountdown(seconds int)

	Messages() []core.Message
	Status() core.Status

	// WaitForNextTurn blocks until the host confirms the next turn under
	// manual pacing, or until ctx is cancelled.
	WaitForNextTurn(ctx context.Context) error
}
