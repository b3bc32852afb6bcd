package lifecycle

import (
	"fmt"

	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
)

// allowedEvents eventos admitidos desde cada estado. Los terminales no admiten ninguno.
var allowedEvents = map[entity.DocumentStatus]map[entity.EventType]bool{
	entity.StatusBorrador: {
		entity.EventXMLGenerado: true,
		entity.EventCancelado:   true,
	},
	entity.StatusXMLGenerado: {
		entity.EventXMLGenerado: true,
		entity.EventTimbrado:    true,
		entity.EventCancelado:   true,
	},
	entity.StatusTimbrado: {
		entity.EventIniciado:             true,
		entity.EventEnRuta:               true,
		entity.EventCancelado:            true,
		entity.EventCancelacionPendiente: true,
		entity.EventCancelacionError:     true,
	},
	entity.StatusEnTransito: {
		entity.EventEnRuta:               true,
		entity.EventEntregado:            true,
		entity.EventCancelado:            true,
		entity.EventCancelacionPendiente: true,
		entity.EventCancelacionError:     true,
	},
	entity.StatusCancelacionPendiente: {
		entity.EventCancelado:            true,
		entity.EventCancelacionRechazada: true,
		entity.EventCancelacionError:     true,
	},
}

// CheckTransition valida que el evento pueda agregarse al registro actual.
func CheckTransition(events []*entity.LifecycleEvent, next entity.EventType) error {
	if _, err := ParseEventType(string(next)); err != nil {
		return err
	}
	if len(events) == 0 {
		if next != entity.EventCreado {
			return fmt.Errorf("%w: el primer evento debe ser %q", domain.ErrInvalidTransition, entity.EventCreado)
		}
		return nil
	}
	current, err := StatusOf(events)
	if err != nil {
		return err
	}
	if current.IsTerminal() {
		return fmt.Errorf("%w: el documento está en estado terminal %q", domain.ErrInvalidTransition, current)
	}
	if !allowedEvents[current][next] {
		return fmt.Errorf("%w: %q no se admite desde %q", domain.ErrInvalidTransition, next, current)
	}
	return nil
}
