package observability

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordEvent("message_created", "ok", time.Millisecond)
			m.Inc("ticket_provisioned")
		}()
	}
	wg.Wait()
	m.RecordFailure("interaction_created", "REMOTE_FORBIDDEN")

	snap := m.Snapshot()
	assert.Equal(t, int64(50), snap.Events["message_created|ok"])
	assert.Equal(t, int64(50), m.Counter("ticket_provisioned"))
	assert.Equal(t, int64(1), snap.Failures["interaction_created|REMOTE_FORBIDDEN"])
	assert.Equal(t, (50 * time.Millisecond).String(), snap.EventLatency["message_created"])
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordEvent("ready", "ok", 0)
	m.Inc("x")
	assert.Equal(t, int64(0), m.Counter("x"))
	assert.Nil(t, m.Snapshot().Events)
}
