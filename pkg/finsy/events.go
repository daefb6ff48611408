package finsy

// EventKind identifies a lifecycle event emitted by a Switch or a
// Controller.
type EventKind string

const (
	// Stream channel lifecycle.
	EventChannelUp    EventKind = "CHANNEL_UP"
	EventChannelReady EventKind = "CHANNEL_READY"
	EventChannelDown  EventKind = "CHANNEL_DOWN"

	// Arbitration outcomes.
	EventBecamePrimary EventKind = "BECAME_PRIMARY"
	EventBecameBackup  EventKind = "BECAME_BACKUP"

	// Pipeline installed or verified.
	EventPipelineReady EventKind = "PIPELINE_READY"

	// Stream-level error from the device, or queue overflow.
	EventStreamError EventKind = "STREAM_ERROR"

	// gNMI-driven interface state changes.
	EventPortUp   EventKind = "PORT_UP"
	EventPortDown EventKind = "PORT_DOWN"

	// Controller membership.
	EventControllerEnter EventKind = "CONTROLLER_ENTER"
	EventControllerLeave EventKind = "CONTROLLER_LEAVE"
)

// Event is delivered synchronously to subscribed listeners. Listeners
// must not block; long work belongs in a task of their own.
type Event struct {
	Kind   EventKind
	Switch *Switch
	Port   string // PORT_UP / PORT_DOWN
	Err    error  // STREAM_ERROR
}
