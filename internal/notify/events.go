// Package notify defines the minimal notification-bus contracts the core
// depends on plus a default in-memory implementation. The bus is treated
// as an external collaborator; this package exists so the broker,
// scanner, and controller have a concrete, injectable handle to publish
// lifecycle/progress events to instead of reaching for ambient global
// state.
package notify

import "time"

// Filter selects which category of events a subscriber receives.
type Filter int

const (
	FilterAll Filter = iota
	FilterSystemOnly
	FilterQueueOnly
	FilterScanOnly
	FilterPluginOnly
)

// Category tags an Event so Filter can route it without inspecting payload.
type Category int

const (
	CategorySystem Category = iota
	CategoryQueue
	CategoryScan
	CategoryPlugin
)

// System event subtypes.
const (
	SystemStartup  = "startup"
	SystemShutdown = "shutdown"
)

// Queue event subtypes.
const (
	QueueStarted  = "started"
	QueueShutdown = "shutdown"
	QueueLagged   = "lagged"
)

// Scan event subtypes.
const (
	ScanStarted  = "started"
	ScanProgress = "progress"
	ScanWarning  = "warning"
	ScanComplete = "completed"
	ScanErr      = "error"
)

// Plugin event subtypes.
const (
	PluginRegistered = "registered"
	PluginProcessing = "processing"
	PluginKeepAlive  = "keep_alive"
	PluginComplete   = "completed"
	PluginErr        = "error"
)

// Event is the tagged union published to the notification bus.
type Event struct {
	Category  Category
	Type      string
	Timestamp time.Time

	Message string

	// QueueID identifies the broker/queue a Queue event concerns.
	QueueID string
	// ScannerID identifies the scanner a Scan event concerns.
	ScannerID string
	// PluginID/ScanID identify the plugin and scan a Plugin event concerns.
	PluginID string
	ScanID   string
}

func newEvent(cat Category, typ, message string) Event {
	return Event{Category: cat, Type: typ, Timestamp: time.Now(), Message: message}
}

// NewSystemEvent builds a System{type, message?} event.
func NewSystemEvent(typ, message string) Event {
	return newEvent(CategorySystem, typ, message)
}

// NewQueueEvent builds a Queue{type, queue_id, message?} event.
func NewQueueEvent(typ, queueID, message string) Event {
	e := newEvent(CategoryQueue, typ, message)
	e.QueueID = queueID
	return e
}

// NewScanEvent builds a Scan{type, scanner_id, message?} event.
func NewScanEvent(typ, scannerID, message string) Event {
	e := newEvent(CategoryScan, typ, message)
	e.ScannerID = scannerID
	return e
}

// NewPluginEvent builds a Plugin{type, plugin_id, scan_id, message?} event.
func NewPluginEvent(typ, pluginID, scanID, message string) Event {
	e := newEvent(CategoryPlugin, typ, message)
	e.PluginID = pluginID
	e.ScanID = scanID
	return e
}

// matches reports whether the event passes the given subscriber filter.
func (e Event) matches(f Filter) bool {
	switch f {
	case FilterAll:
		return true
	case FilterSystemOnly:
		return e.Category == CategorySystem
	case FilterQueueOnly:
		return e.Category == CategoryQueue
	case FilterScanOnly:
		return e.Category == CategoryScan
	case FilterPluginOnly:
		return e.Category == CategoryPlugin
	default:
		return false
	}
}
