package assist

// Do invokes fn up to attempts times, re-invoking immediately (no backoff)
// while retryable(err) holds. The final error is returned unchanged once
// attempts are exhausted; an error the predicate rejects propagates on first
// occurrence.
func Do[T any](attempts int, retryable func(error) bool, fn func() (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	for i := 0; i < attempts; i++ {
		result, err = fn()
		if err == nil || !retryable(err) {
			return result, err
		}
	}
	return result, err
}
