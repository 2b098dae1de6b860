package main

import (
	"fmt"
	"sync/atomic"
	"time"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// CountdownPrinter displays a single-line countdown while discovery runs.
//
// Usage:
//
//	p := NewCountdownPrinter("Scanning for devices", 15*time.Second)
//	p.Start()
//	defer p.Stop()
//
// A CountdownPrinter is single-use: Start at most once, Stop exactly once.
// Stop is safe to call multiple times and from multiple goroutines.
type CountdownPrinter struct {
	prefix    string
	duration  time.Duration
	startTime time.Time
	ticker    atomic.Pointer[time.Ticker]
	stopChan  chan struct{}
	done      chan struct{}
	started   atomic.Bool
}

func NewCountdownPrinter(prefix string, duration time.Duration) *CountdownPrinter {
	return &CountdownPrinter{prefix: prefix, duration: duration}
}

// Start begins displaying countdown updates in a background goroutine.
// Panics if called more than once on the same instance.
func (p *CountdownPrinter) Start() {
	if !p.started.CompareAndSwap(false, true) {
		panic("CountdownPrinter.Start called more than once")
	}

	p.done = make(chan struct{})
	p.stopChan = make(chan struct{})
	p.startTime = time.Now()
	ticker := time.NewTicker(progressUpdateInterval)
	p.ticker.Store(ticker)

	fmt.Printf("\r%s...   ", p.prefix)

	go func() {
		defer close(p.done)
		for {
			select {
			case <-p.stopChan:
				return
			case <-ticker.C:
				remaining := p.duration - time.Since(p.startTime)
				if remaining <= 0 {
					fmt.Printf("\r%s (0s)   ", p.prefix)
					continue
				}
				// Round to the nearest second
				fmt.Printf("\r%s (%ds)   ", p.prefix, int(remaining.Seconds()+0.5))
			}
		}
	}()
}

// Stop stops the countdown and clears the line. Only the first call stops the
// ticker and waits for the goroutine.
func (p *CountdownPrinter) Stop() {
	ticker := p.ticker.Swap(nil)
	if ticker == nil {
		return // Already stopped
	}

	ticker.Stop()
	close(p.stopChan)
	<-p.done

	fmt.Print(clearLineSequence)
}
