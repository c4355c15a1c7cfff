package util

import (
	crand "crypto/rand"
	"math/big"
	"time"
)

// Retry executes fn until it returns retry=false or the timeout elapses.
// It waits with jittered exponential backoff between attempts and surfaces the last error.
func Retry(timeout time.Duration, fn func() (retry bool, err error)) error {
	deadline := time.Now().Add(timeout)
	backoff := 200 * time.Millisecond
	for {
		retry, err := fn()
		if !retry || time.Now().After(deadline) {
			return err
		}
		time.Sleep(jitter(backoff))
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
}

// jitter returns a duration in [d/2, d).
func jitter(d time.Duration) time.Duration {
	half := d / 2
	if half <= 0 {
		return d
	}
	n, err := crand.Int(crand.Reader, big.NewInt(int64(half)))
	if err != nil {
		return d
	}
	return half + time.Duration(n.Int64())
}
