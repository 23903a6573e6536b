package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound       = errors.New("recurso no encontrado")
	ErrInvalidInput   = errors.New("entrada inválida")
	ErrInvalidType    = errors.New("tipo de movimiento no válido")
	ErrDuplicate      = errors.New("recurso duplicado")
	ErrConflict       = errors.New("conflicto con el estado actual")
	ErrSyncTransport  = errors.New("canal de sincronización no disponible")
	ErrMergeAmbiguity = errors.New("ambigüedad en la fusión de movimientos")
)

// ValidationError envío mal formado (producto ausente, cantidad no positiva...).
// Se devuelve de inmediato al llamador y nunca se persiste.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validación %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// InvalidTypeError el tipo de movimiento no pertenece al conjunto permitido.
type InvalidTypeError struct {
	Type string
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("tipo de movimiento %q no válido", e.Type)
}

func (e *InvalidTypeError) Unwrap() error { return ErrInvalidType }

// SyncTransportError fallo del canal o de una petición remota. Se recupera con reintentos;
// el movimiento afectado permanece Pending.
type SyncTransportError struct {
	Op  string
	Err error
}

func (e *SyncTransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("sync %s: %v", e.Op, ErrSyncTransport)
	}
	return fmt.Sprintf("sync %s: %v", e.Op, e.Err)
}

func (e *SyncTransportError) Unwrap() []error { return []error{ErrSyncTransport, e.Err} }

// ConflictMergeAmbiguity dos registros comparten clave de dedup pero difieren en otros campos.
// Se resuelve a favor del registro autoritativo y solo se registra para auditoría.
type ConflictMergeAmbiguity struct {
	Key      string
	LocalID  string
	RemoteID string
	Fields   []string
}

func (e *ConflictMergeAmbiguity) Error() string {
	return fmt.Sprintf("clave %s: local %s y remoto %s difieren en [%s]",
		e.Key, e.LocalID, e.RemoteID, strings.Join(e.Fields, ", "))
}

func (e *ConflictMergeAmbiguity) Unwrap() error { return ErrMergeAmbiguity }
