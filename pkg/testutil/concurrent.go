package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	"talentgate/internal/sentinel"
)

// ConcurrentResult tallies the outcomes of RunConcurrent.
type ConcurrentResult struct {
	Successes   int32
	AlreadyUsed int32
	Conflicts   int32
	NotFounds   int32
	Errors      int32
}

func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.AlreadyUsed + r.Conflicts + r.NotFounds + r.Errors
}

// RunConcurrent starts n goroutines running fn behind a shared start gate
// and sorts their errors by sentinel.
func RunConcurrent(n int, fn func(i int) error) *ConcurrentResult {
	var (
		wg                                         sync.WaitGroup
		successes, used, conflicts, missing, other atomic.Int32
	)
	start := make(chan struct{})
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := fn(i)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				used.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			case errors.Is(err, sentinel.ErrNotFound):
				missing.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes:   successes.Load(),
		AlreadyUsed: used.Load(),
		Conflicts:   conflicts.Load(),
		NotFounds:   missing.Load(),
		Errors:      other.Load(),
	}
}
