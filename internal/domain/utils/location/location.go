package location

import (
	"sync"
	"time"
)

var (
	mu       sync.RWMutex
	location = time.UTC
)

// Load sets the display time zone. An empty name keeps UTC.
//
// The zone only affects logging and human-readable text; due-time comparisons are instant comparisons.
func Load(name string) error {
	if name == "" {
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return err
	}
	mu.Lock()
	location = loc
	mu.Unlock()
	return nil
}

// Location returns the configured display time zone.
func Location() *time.Location {
	mu.RLock()
	defer mu.RUnlock()
	return location
}
