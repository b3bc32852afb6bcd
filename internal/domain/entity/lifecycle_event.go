package entity

import "time"

// EventType nombre del evento del ciclo de vida.
type EventType string

const (
	EventCreado               EventType = "creado"
	EventXMLGenerado          EventType = "xml_generado"
	EventTimbrado             EventType = "timbrado"
	EventIniciado             EventType = "iniciado"
	EventEnRuta               EventType = "en_ruta"
	EventEntregado            EventType = "entregado"
	EventCancelado            EventType = "cancelado"
	EventCancelacionPendiente EventType = "cancelacion_pendiente"
	EventCancelacionRechazada EventType = "cancelacion_rechazada"
	EventCancelacionError     EventType = "cancelacion_error"
)

// LifecycleEvent evento inmutable del documento (solo se agregan).
type LifecycleEvent struct {
	ID         string
	Sequence   int64 // orden de inserción; desempata timestamps iguales
	DocumentID string
	EventType  EventType
	Timestamp  time.Time
	Automatic  bool
	Metadata   map[string]string
}
