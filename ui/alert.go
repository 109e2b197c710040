// Package ui holds the front-end independent behaviour of the promotores
// search screen: alerts, the results table, searches, clipboard, QR input
// and CSV export. Front ends render ui.State and forward user input.
package ui

import (
	"sync"
	"time"
)

// AlertKind selects the alert style.
type AlertKind string

const (
	AlertError   AlertKind = "error"
	AlertSuccess AlertKind = "success"
)

// Alert is the single transient status message.
type Alert struct {
	Message string
	Kind    AlertKind
	Visible bool
}

// Scheduler runs f once after d. Callbacks cannot be cancelled.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(d time.Duration, f func())

func (s SchedulerFunc) AfterFunc(d time.Duration, f func()) {
	s(d, f)
}

// TimerScheduler schedules on the runtime timers.
var TimerScheduler Scheduler = SchedulerFunc(func(d time.Duration, f func()) {
	time.AfterFunc(d, f)
})

// AlertPresenter owns the alert region. Every Show replaces the message
// and schedules a hide; earlier hides are not cancelled, so an older
// timer can hide a newer message early. A nil presenter is a region that
// is absent from the screen and ignores every call.
type AlertPresenter struct {
	duration time.Duration
	sched    Scheduler
	notify   func(Alert)

	mu      sync.Mutex
	current Alert
}

// NewAlertPresenter builds a presenter that hides alerts after duration.
// A zero duration or nil scheduler keeps alerts until the next Hide.
func NewAlertPresenter(duration time.Duration, sched Scheduler, notify func(Alert)) *AlertPresenter {
	return &AlertPresenter{duration: duration, sched: sched, notify: notify}
}

// Show displays message with the given kind.
func (p *AlertPresenter) Show(message string, kind AlertKind) {
	if p == nil {
		return
	}
	p.set(Alert{Message: message, Kind: kind, Visible: true})
	if p.duration > 0 && p.sched != nil {
		p.sched.AfterFunc(p.duration, p.Hide)
	}
}

// Hide hides the alert, keeping its last text.
func (p *AlertPresenter) Hide() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.current.Visible = false
	hidden := p.current
	p.mu.Unlock()
	if p.notify != nil {
		p.notify(hidden)
	}
}

// Current returns the alert as it is shown now.
func (p *AlertPresenter) Current() Alert {
	if p == nil {
		return Alert{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *AlertPresenter) set(a Alert) {
	p.mu.Lock()
	p.current = a
	p.mu.Unlock()
	if p.notify != nil {
		p.notify(a)
	}
}
