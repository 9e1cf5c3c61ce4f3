package provider

import (
	"context"
	"time"

	"ziggly-wallet/pkg/errno"
)

const (
	DefaultDetectTimeout  = 5 * time.Second
	DefaultDetectInterval = 500 * time.Millisecond
)

// Detect returns the injected provider, polling the locator every interval
// until it shows up, the timeout passes or ctx is cancelled.
func Detect(ctx context.Context, loc Locator, timeout, interval time.Duration) (Provider, error) {
	if p, ok := loc.Lookup(); ok {
		return p, nil
	}
	if timeout <= 0 {
		timeout = DefaultDetectTimeout
	}
	if interval <= 0 {
		interval = DefaultDetectInterval
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// 最后再看一次, 避免刚好在超时边界注入
			if p, ok := loc.Lookup(); ok {
				return p, nil
			}
			return nil, errno.ErrProviderUnavailable
		case <-ticker.C:
			if p, ok := loc.Lookup(); ok {
				return p, nil
			}
		}
	}
}
