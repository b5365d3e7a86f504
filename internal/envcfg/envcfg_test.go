// SPDX-License-Identifier: MIT

package envcfg

import (
	"testing"
	"time"
)

func ms(v int64) *int64 { return &v }

func TestClampPrefersMillisecondOverride(t *testing.T) {
	c := TimeoutClamp{TimeoutMS: ms(5), TimeoutS: ms(60)}
	got := c.Clamp(time.Hour)
	if got != 5*time.Millisecond {
		t.Fatalf("got %v, want 5ms", got)
	}
}

func TestClampFallsBackToSeconds(t *testing.T) {
	c := TimeoutClamp{TimeoutS: ms(2)}
	got := c.Clamp(time.Hour)
	if got != 2*time.Second {
		t.Fatalf("got %v, want 2s", got)
	}
}

func TestClampNeverExceedsRequested(t *testing.T) {
	c := TimeoutClamp{TimeoutMS: ms(5000)}
	got := c.Clamp(10 * time.Millisecond)
	if got != 10*time.Millisecond {
		t.Fatalf("got %v, want the shorter requested duration (10ms)", got)
	}
}

func TestClampUnsetReturnsRequested(t *testing.T) {
	c := TimeoutClamp{}
	got := c.Clamp(30 * time.Second)
	if got != 30*time.Second {
		t.Fatalf("got %v, want 30s unchanged", got)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PATHSPACE_TEST_TIMEOUT_MS", "42")
	c, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.TimeoutMS == nil || *c.TimeoutMS != 42 {
		t.Fatalf("got %+v, want TimeoutMS=42", c)
	}
}
