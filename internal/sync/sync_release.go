//go:build !deadlock

// Package sync provides the lock types used by radmin. Building with
// -tags deadlock swaps them for go-deadlock's detecting implementations.
package sync

import "sync"

// Mutex is the standard sync.Mutex in release builds.
type Mutex = sync.Mutex

// RWMutex is the standard sync.RWMutex in release builds.
type RWMutex = sync.RWMutex

// Once is the standard sync.Once.
type Once = sync.Once

// WaitGroup is the standard sync.WaitGroup.
type WaitGroup = sync.WaitGroup

// DetectionEnabled reports whether lock-order detection is compiled in.
const DetectionEnabled = false
