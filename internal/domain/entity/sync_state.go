package entity

import "time"

// SyncStatus estado de sincronización de un movimiento.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "Pending"
	SyncStatusSent    SyncStatus = "Sent"
	SyncStatusSynced  SyncStatus = "Synced"
	SyncStatusFailed  SyncStatus = "Failed"
)

// SyncState metadatos de sincronización por movimiento (cola de pendientes en syncMeta).
type SyncState struct {
	LocalID   string
	RemoteID  string
	Status    SyncStatus
	Attempts  int
	LastError string
	SentAt    *time.Time
	UpdatedAt time.Time
}

// SyncMeta estado global de sincronización persistido localmente.
type SyncMeta struct {
	LastSyncAt *time.Time
}
