package executor

import (
	"sync"
	"time"
)

// FanOutMetrics tracks statistics about fan-out execution.
type FanOutMetrics struct {
	CallsExecuted    int
	CallsSuccessful  int
	CallsFailed      int
	CallsTimedOut    int
	LongestCallTime  time.Duration
	ShortestCallTime time.Duration
	TotalRetries     int

	mu sync.Mutex // Protects metrics updates
}

// Copy returns a copy without the mutex.
func (m *FanOutMetrics) Copy() FanOutMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	return FanOutMetrics{
		CallsExecuted:    m.CallsExecuted,
		CallsSuccessful:  m.CallsSuccessful,
		CallsFailed:      m.CallsFailed,
		CallsTimedOut:    m.CallsTimedOut,
		LongestCallTime:  m.LongestCallTime,
		ShortestCallTime: m.ShortestCallTime,
		TotalRetries:     m.TotalRetries,
	}
}

func (m *FanOutMetrics) record(ok, timedOut bool, duration time.Duration, retries int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallsExecuted++
	if ok {
		m.CallsSuccessful++
	} else {
		m.CallsFailed++
	}
	if timedOut {
		m.CallsTimedOut++
	}
	if duration > m.LongestCallTime {
		m.LongestCallTime = duration
	}
	if m.ShortestCallTime == 0 || duration < m.ShortestCallTime {
		m.ShortestCallTime = duration
	}
	m.TotalRetries += retries
}
