package models

import "time"

// PinEventType names a change to the pin collection.
type PinEventType string

const (
	PinCreated     PinEventType = "pin_created"
	PinDeleted     PinEventType = "pin_deleted"
	PinNoteUpdated PinEventType = "pin_note_updated"
	PinsCleared    PinEventType = "pins_cleared"
	PinsImported   PinEventType = "pins_imported"
)

// PinEvent is published to observers whenever the pin collection changes.
type PinEvent struct {
	DeviceID  string       `json:"device_id"`
	Timestamp time.Time    `json:"timestamp"`
	Type      PinEventType `json:"type"`
	Pin       *Pin         `json:"pin,omitempty"`   // Affected pin, for single-pin events
	Count     int          `json:"count,omitempty"` // Affected pins, for bulk events
}

// StatusAlive marks a running device in heartbeats.
const StatusAlive = "alive"

// DeviceStatus is the periodic heartbeat payload.
type DeviceStatus struct {
	DeviceID        string    `json:"device_id"`
	DeviceName      string    `json:"device_name"`
	Timestamp       time.Time `json:"timestamp"`
	Status          string    `json:"status"`
	PinCount        int       `json:"pin_count"`
	DiskUsedPercent float64   `json:"disk_used_percent"` // Filesystem holding the pin storage
}
