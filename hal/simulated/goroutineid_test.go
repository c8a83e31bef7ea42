package simulated

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGoroutineID_DistinctAcrossGoroutines(t *testing.T) {
	var wg sync.WaitGroup
	ids := make(chan uint64, 2)
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			ids <- goroutineID()
		}()
	}
	wg.Wait()
	close(ids)

	a := <-ids
	b := <-ids
	require.NotZero(t, a)
	require.NotZero(t, b)
	require.NotEqual(t, a, b)
}

func TestGoroutineID_StableWithinGoroutine(t *testing.T) {
	first := goroutineID()
	second := goroutineID()
	require.Equal(t, first, second)
}
