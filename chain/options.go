// Copyright (c) 2025 BVK Chaitanya

package chain

import (
	"os"
	"time"
)

type Options struct {
	// RequestTimeout is the per-call timeout for every rpc request.
	RequestTimeout time.Duration

	// MaxRequestsPerSecond limits the client-side rpc request rate. Public BSC
	// endpoints throttle aggressively, so the default is conservative.
	MaxRequestsPerSecond int
}

func (v *Options) setDefaults() {
	if v.RequestTimeout == 0 {
		v.RequestTimeout = 10 * time.Second
	}
	if v.MaxRequestsPerSecond == 0 {
		v.MaxRequestsPerSecond = 25
	}
}

func (v *Options) Check() error {
	if v.RequestTimeout <= 0 {
		return os.ErrInvalid
	}
	if v.MaxRequestsPerSecond <= 0 {
		return os.ErrInvalid
	}
	return nil
}
