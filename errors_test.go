package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNoEvents,
		ErrSignalReactorBusy,
		ErrInvalidPriority,
		ErrPriorityActive,
		ErrAlreadyInserted,
		ErrSignalUnsupported,
		ErrOnceSignal,
		ErrClosed,
	}
	for i, a := range sentinels {
		require.Errorf(t, a, "sentinel[%d] must be non-nil", i)
		for j, b := range sentinels {
			if i != j {
				assert.NotErrorIsf(t, a, b, "sentinel[%d] must not equal sentinel[%d]", i, j)
			}
		}
	}
}
