package util

import (
	"errors"
	"testing"
	"time"
)

func TestRetryStopsWhenFnSaysSo(t *testing.T) {
	calls := 0
	err := Retry(5*time.Second, func() (bool, error) {
		calls++
		if calls < 3 {
			return true, errors.New("not yet")
		}
		return false, nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
}

func TestRetrySurfacesLastErrorAfterTimeout(t *testing.T) {
	want := errors.New("still down")
	err := Retry(0, func() (bool, error) { return true, want })
	if !errors.Is(err, want) {
		t.Fatalf("err = %v", err)
	}
}

func TestJitterBounds(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := jitter(100 * time.Millisecond)
		if d < 50*time.Millisecond || d >= 100*time.Millisecond {
			t.Fatalf("jitter out of range: %v", d)
		}
	}
}
