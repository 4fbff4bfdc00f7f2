package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stocksync/internal/remote"
)

func TestTraceSnapshot_Marshal(t *testing.T) {
	status := 0
	snap := TraceSnapshot{
		ScenarioName: "snap",
		Trace: []TraceEvent{{
			Seq:     1,
			Type:    EventRequest,
			Request: &remote.Request{ShopID: "S1", ArticleID: "A1", Type: "in", Qty: 1, Reason: "r"},
			Status:  &status,
		}},
	}

	data, err := snap.Marshal()
	require.NoError(t, err)

	out := string(data)
	assert.True(t, strings.HasSuffix(out, "}\n"))
	assert.Contains(t, out, `"status": 0`)
	assert.NotContains(t, out, "device_id")
	assert.NotContains(t, out, `"drain"`)
}
