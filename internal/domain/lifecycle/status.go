// Package lifecycle calcula el estado de un documento fiscal a partir de su registro
// de eventos. El estado nunca se almacena: es una función pura del registro ordenado.
package lifecycle

import (
	"fmt"
	"sort"
	"time"

	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
)

type effect int

const (
	effectSet     effect = iota // el evento fija el estado
	effectRestore               // vuelve al estado previo a la cancelación pendiente
	effectKeep                  // informativo, no cambia el estado
)

type rule struct {
	effect effect
	status entity.DocumentStatus
}

// eventTable tabla total evento → efecto. Un nombre fuera de la tabla es un error.
var eventTable = map[entity.EventType]rule{
	entity.EventCreado:               {effectSet, entity.StatusBorrador},
	entity.EventXMLGenerado:          {effectSet, entity.StatusXMLGenerado},
	entity.EventTimbrado:             {effectSet, entity.StatusTimbrado},
	entity.EventIniciado:             {effectSet, entity.StatusEnTransito},
	entity.EventEnRuta:               {effectSet, entity.StatusEnTransito},
	entity.EventEntregado:            {effectSet, entity.StatusEntregado},
	entity.EventCancelado:            {effectSet, entity.StatusCancelado},
	entity.EventCancelacionPendiente: {effectSet, entity.StatusCancelacionPendiente},
	entity.EventCancelacionRechazada: {effect: effectRestore},
	entity.EventCancelacionError:     {effect: effectKeep},
}

var progressTable = map[entity.DocumentStatus]int{
	entity.StatusBorrador:             10,
	entity.StatusXMLGenerado:          30,
	entity.StatusTimbrado:             50,
	entity.StatusEnTransito:           80,
	entity.StatusEntregado:            100,
	entity.StatusCancelado:            0,
	entity.StatusCancelacionPendiente: 0,
}

// ParseEventType valida un nombre de evento recibido en la frontera.
func ParseEventType(name string) (entity.EventType, error) {
	t := entity.EventType(name)
	if _, ok := eventTable[t]; !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownEvent, name)
	}
	return t, nil
}

// Sorted devuelve una copia ordenada por timestamp ascendente; la secuencia de
// inserción desempata. No modifica el slice recibido.
func Sorted(events []*entity.LifecycleEvent) []*entity.LifecycleEvent {
	out := make([]*entity.LifecycleEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out
}

// StatusOf recorre el registro en orden y devuelve el estado resultante.
// Un registro vacío implica borrador. Un evento desconocido devuelve ErrUnknownEvent.
func StatusOf(events []*entity.LifecycleEvent) (entity.DocumentStatus, error) {
	st, _, err := replay(events)
	return st, err
}

// replay devuelve además el momento del evento que fijó el estado vigente; un
// cancelacion_rechazada devuelve también ese momento al previo a la cancelación.
func replay(events []*entity.LifecycleEvent) (entity.DocumentStatus, time.Time, error) {
	status, since := entity.StatusBorrador, time.Time{}
	beforeCancel, beforeSince := entity.StatusBorrador, time.Time{}
	for _, ev := range Sorted(events) {
		r, ok := eventTable[ev.EventType]
		if !ok {
			return "", time.Time{}, fmt.Errorf("%w: %q en documento %s", domain.ErrUnknownEvent, ev.EventType, ev.DocumentID)
		}
		switch r.effect {
		case effectSet:
			if r.status == entity.StatusCancelacionPendiente {
				beforeCancel, beforeSince = status, since
			}
			status, since = r.status, ev.Timestamp
		case effectRestore:
			status, since = beforeCancel, beforeSince
		case effectKeep:
		}
	}
	return status, since, nil
}

// Progress porcentaje fijo de avance por estado.
func Progress(status entity.DocumentStatus) int {
	return progressTable[status]
}

// Latest devuelve el evento más reciente (nil si no hay).
func Latest(events []*entity.LifecycleEvent) *entity.LifecycleEvent {
	if len(events) == 0 {
		return nil
	}
	sorted := Sorted(events)
	return sorted[len(sorted)-1]
}
