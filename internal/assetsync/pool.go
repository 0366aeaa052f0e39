package assetsync

import "sync"

// DefaultMaxConcurrency bounds how many create_chunk calls may be in
// flight at once when no explicit limit is configured.
const DefaultMaxConcurrency = 8

// runBounded runs one goroutine per item in items, at most limit at a
// time, and returns the first error encountered (if any); every item
// still runs to completion regardless of earlier failures, since chunk
// uploads are independent and their completion order does not matter.
func runBounded[T any](items []T, limit int, fn func(T) error) error {
	if limit <= 0 {
		limit = DefaultMaxConcurrency
	}
	if limit > len(items) {
		limit = len(items)
	}
	if limit == 0 {
		return nil
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, item := range items {
		item := item
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := fn(item); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return firstErr
}
