// Package groutine starts named goroutines that carry pprof labels, so background
// workers are identifiable in goroutine profiles and leak reports.
package groutine

import (
	"context"
	"runtime/pprof"
)

type ctxKey string

const nameKey ctxKey = "goroutine_name"

// Go runs fn on a new goroutine labelled goroutine_name=name, plus any extra
// key/value label pairs. A nil parent means context.Background().
//
//	groutine.Go(ctx, "ble-link-monitor", func(ctx context.Context) {
//	    // work
//	}, "address", addr)
func Go(parent context.Context, name string, fn func(ctx context.Context), labels ...string) {
	if parent == nil {
		parent = context.Background()
	}
	if len(labels)%2 != 0 {
		labels = labels[:len(labels)-1]
	}

	set := pprof.Labels(append([]string{string(nameKey), name}, labels...)...)
	go pprof.Do(parent, set, func(ctx context.Context) {
		fn(context.WithValue(ctx, nameKey, name))
	})
}

// Name returns the name given to Go, or "" outside such a goroutine.
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	name, _ := ctx.Value(nameKey).(string)
	return name
}
