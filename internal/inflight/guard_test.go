package inflight

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTryAcquireAndRelease(t *testing.T) {
	g := NewGuard()

	assert.True(t, g.TryAcquire(KindAnalysis, "AAPL"))
	assert.True(t, g.InFlight(KindAnalysis, "AAPL"))

	// Second acquire for the same pair is rejected.
	assert.False(t, g.TryAcquire(KindAnalysis, "AAPL"))

	g.Release(KindAnalysis, "AAPL")
	assert.False(t, g.InFlight(KindAnalysis, "AAPL"))
	assert.True(t, g.TryAcquire(KindAnalysis, "AAPL"))
}

func TestKindsAndSymbolsAreIndependent(t *testing.T) {
	g := NewGuard()

	assert.True(t, g.TryAcquire(KindAnalysis, "AAPL"))

	// Same symbol, different kind.
	assert.True(t, g.TryAcquire(KindEvents, "AAPL"))

	// Same kind, different symbol.
	assert.True(t, g.TryAcquire(KindAnalysis, "MSFT"))

	g.Release(KindAnalysis, "AAPL")
	assert.True(t, g.InFlight(KindEvents, "AAPL"))
	assert.True(t, g.InFlight(KindAnalysis, "MSFT"))
}

func TestReleaseUnheldIsSafe(t *testing.T) {
	g := NewGuard()

	g.Release(KindAnalysis, "AAPL")
	g.Release(Kind("unknown"), "AAPL")

	assert.False(t, g.InFlight(KindAnalysis, "AAPL"))
}

func TestConcurrentAcquire_ExactlyOneWinner(t *testing.T) {
	g := NewGuard()

	const goroutines = 50
	var wg sync.WaitGroup
	wins := make(chan struct{}, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire(KindAnalysis, "AAPL") {
				wins <- struct{}{}
			}
		}()
	}

	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count)
}
