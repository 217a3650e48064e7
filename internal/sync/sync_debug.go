//go:build deadlock

// Package sync provides the lock types used by radmin. Building with
// -tags deadlock swaps them for go-deadlock's detecting implementations.
package sync

import (
	"os"
	"sync"
	"time"

	"github.com/sasha-s/go-deadlock"
)

// Mutex wraps go-deadlock.Mutex in debug builds.
type Mutex = deadlock.Mutex

// RWMutex wraps go-deadlock.RWMutex in debug builds.
type RWMutex = deadlock.RWMutex

// Once is the standard sync.Once.
type Once = sync.Once

// WaitGroup is the standard sync.WaitGroup.
type WaitGroup = sync.WaitGroup

// DetectionEnabled reports whether lock-order detection is compiled in.
const DetectionEnabled = true

func init() {
	deadlock.Opts.DeadlockTimeout = 30 * time.Second

	if os.Getenv("RADMIN_NO_DEADLOCK_DETECT") != "" {
		deadlock.Opts.Disable = true
		return
	}

	deadlock.Opts.PrintAllCurrentGoroutines = true

	println("[DEADLOCK DETECTION ENABLED] Using go-deadlock for mutex operations")
}
