// SPDX-License-Identifier: MIT

// Package envcfg loads the environment-variable overrides that clamp
// how long a blocking `out` call is allowed to wait, the same way
// YaoApp-yao's config package loads its Config struct with
// github.com/caarlos0/env/v6: a plain struct tagged with `env:"..."`,
// parsed once with env.Parse.
package envcfg

import (
	"time"

	"github.com/caarlos0/env/v6"
)

// TimeoutClamp holds the two environment overrides described in
// spec.md §6.4: PATHSPACE_TEST_TIMEOUT_MS (milliseconds) takes
// precedence over PATHSPACE_TEST_TIMEOUT (seconds) when both are set.
type TimeoutClamp struct {
	TimeoutMS *int64 `env:"PATHSPACE_TEST_TIMEOUT_MS"`
	TimeoutS  *int64 `env:"PATHSPACE_TEST_TIMEOUT"`
}

// Load parses the current process environment into a TimeoutClamp.
func Load() (TimeoutClamp, error) {
	var c TimeoutClamp
	if err := env.Parse(&c); err != nil {
		return TimeoutClamp{}, err
	}
	return c, nil
}

// Clamp returns the shorter of requested and whichever override is
// set; if neither override is set, requested is returned unchanged. A
// zero or negative override is ignored (treated as unset).
func (c TimeoutClamp) Clamp(requested time.Duration) time.Duration {
	out := requested
	if c.TimeoutMS != nil && *c.TimeoutMS > 0 {
		if ms := time.Duration(*c.TimeoutMS) * time.Millisecond; ms < out {
			out = ms
		}
	} else if c.TimeoutS != nil && *c.TimeoutS > 0 {
		if s := time.Duration(*c.TimeoutS) * time.Second; s < out {
			out = s
		}
	}
	return out
}

// Deadline returns now+Clamp(requested).
func (c TimeoutClamp) Deadline(now time.Time, requested time.Duration) time.Time {
	return now.Add(c.Clamp(requested))
}
