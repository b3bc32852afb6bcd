package lifecycle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/domain/lifecycle"
)

var t0 = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

// logOf construye un registro con un evento por hora a partir de t0.
func logOf(types ...entity.EventType) []*entity.LifecycleEvent {
	out := make([]*entity.LifecycleEvent, len(types))
	for i, et := range types {
		out[i] = &entity.LifecycleEvent{
			DocumentID: "doc-1",
			Sequence:   int64(i + 1),
			EventType:  et,
			Timestamp:  t0.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

// ── StatusOf ────────────────────────────────────────────────────────────────

func TestStatusOf_RegistroVacioEsBorrador(t *testing.T) {
	st, err := lifecycle.StatusOf(nil)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusBorrador, st)
}

func TestStatusOf_TablaDeEventos(t *testing.T) {
	cases := map[entity.EventType]entity.DocumentStatus{
		entity.EventCreado:      entity.StatusBorrador,
		entity.EventXMLGenerado: entity.StatusXMLGenerado,
		entity.EventTimbrado:    entity.StatusTimbrado,
		entity.EventIniciado:    entity.StatusEnTransito,
		entity.EventEnRuta:      entity.StatusEnTransito,
		entity.EventEntregado:   entity.StatusEntregado,
		entity.EventCancelado:   entity.StatusCancelado,
	}
	for ev, want := range cases {
		st, err := lifecycle.StatusOf(logOf(entity.EventCreado, ev))
		require.NoError(t, err)
		assert.Equal(t, want, st, "evento %s", ev)
	}
}

func TestStatusOf_UsaElEventoMasReciente(t *testing.T) {
	events := logOf(entity.EventCreado, entity.EventXMLGenerado, entity.EventTimbrado)
	// El orden del slice no importa: manda el timestamp.
	events[0], events[2] = events[2], events[0]

	st, err := lifecycle.StatusOf(events)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusTimbrado, st)
}

func TestStatusOf_EventoDesconocidoFalla(t *testing.T) {
	events := logOf(entity.EventCreado, entity.EventType("archivado"))

	_, err := lifecycle.StatusOf(events)

	assert.ErrorIs(t, err, domain.ErrUnknownEvent, "no debe degradar en silencio a borrador")
}

func TestStatusOf_ReproduccionIdempotente(t *testing.T) {
	events := logOf(entity.EventCreado, entity.EventXMLGenerado, entity.EventTimbrado, entity.EventIniciado, entity.EventEnRuta)

	first, err := lifecycle.StatusOf(events)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := lifecycle.StatusOf(events)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, entity.EventCreado, events[0].EventType, "StatusOf no debe reordenar el registro recibido")
}

func TestStatusOf_CancelacionRechazadaRestauraEstado(t *testing.T) {
	events := logOf(entity.EventCreado, entity.EventXMLGenerado, entity.EventTimbrado, entity.EventIniciado,
		entity.EventCancelacionPendiente)

	st, err := lifecycle.StatusOf(events)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelacionPendiente, st)

	events = logOf(entity.EventCreado, entity.EventXMLGenerado, entity.EventTimbrado, entity.EventIniciado,
		entity.EventCancelacionPendiente, entity.EventCancelacionRechazada)
	st, err = lifecycle.StatusOf(events)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusEnTransito, st)
}

func TestStatusOf_EmpateDeTimestampUsaSecuencia(t *testing.T) {
	events := logOf(entity.EventCreado, entity.EventXMLGenerado)
	events[1].Timestamp = events[0].Timestamp

	st, err := lifecycle.StatusOf(events)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusXMLGenerado, st)
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 10, lifecycle.Progress(entity.StatusBorrador))
	assert.Equal(t, 30, lifecycle.Progress(entity.StatusXMLGenerado))
	assert.Equal(t, 50, lifecycle.Progress(entity.StatusTimbrado))
	assert.Equal(t, 80, lifecycle.Progress(entity.StatusEnTransito))
	assert.Equal(t, 100, lifecycle.Progress(entity.StatusEntregado))
	assert.Equal(t, 0, lifecycle.Progress(entity.StatusCancelado))
}

// ── Transiciones ────────────────────────────────────────────────────────────

func TestCheckTransition_PrimerEventoDebeSerCreado(t *testing.T) {
	assert.NoError(t, lifecycle.CheckTransition(nil, entity.EventCreado))
	assert.ErrorIs(t, lifecycle.CheckTransition(nil, entity.EventTimbrado), domain.ErrInvalidTransition)
}

func TestCheckTransition_TerminalNoAdmiteEventos(t *testing.T) {
	entregado := logOf(entity.EventCreado, entity.EventXMLGenerado, entity.EventTimbrado, entity.EventIniciado, entity.EventEntregado)
	assert.ErrorIs(t, lifecycle.CheckTransition(entregado, entity.EventCancelado), domain.ErrInvalidTransition)

	cancelado := logOf(entity.EventCreado, entity.EventCancelado)
	assert.ErrorIs(t, lifecycle.CheckTransition(cancelado, entity.EventXMLGenerado), domain.ErrInvalidTransition)
}

func TestCheckTransition_CanceladoDesdeCualquierNoTerminal(t *testing.T) {
	for _, log := range [][]*entity.LifecycleEvent{
		logOf(entity.EventCreado),
		logOf(entity.EventCreado, entity.EventXMLGenerado),
		logOf(entity.EventCreado, entity.EventXMLGenerado, entity.EventTimbrado),
		logOf(entity.EventCreado, entity.EventXMLGenerado, entity.EventTimbrado, entity.EventEnRuta),
	} {
		assert.NoError(t, lifecycle.CheckTransition(log, entity.EventCancelado))
	}
}

func TestCheckTransition_EntregadoRequiereTransito(t *testing.T) {
	timbrado := logOf(entity.EventCreado, entity.EventXMLGenerado, entity.EventTimbrado)
	assert.ErrorIs(t, lifecycle.CheckTransition(timbrado, entity.EventEntregado), domain.ErrInvalidTransition)
}

func TestCheckTransition_EventoDesconocido(t *testing.T) {
	assert.ErrorIs(t, lifecycle.CheckTransition(logOf(entity.EventCreado), "extraviado"), domain.ErrUnknownEvent)
}

// ── Alertas ─────────────────────────────────────────────────────────────────

func TestAlerts_TimbradoSinTransito(t *testing.T) {
	events := logOf(entity.EventCreado, entity.EventXMLGenerado, entity.EventTimbrado)
	stampedAt := events[2].Timestamp

	assert.Empty(t, lifecycle.Alerts(events, stampedAt.Add(23*time.Hour), lifecycle.DefaultThresholds))

	alerts := lifecycle.Alerts(events, stampedAt.Add(25*time.Hour), lifecycle.DefaultThresholds)
	require.Len(t, alerts, 1)
	assert.Equal(t, lifecycle.AlertStampedNotInTransit, alerts[0].Code)
	assert.Equal(t, stampedAt, alerts[0].Since)
}

func TestAlerts_TransitoProlongado(t *testing.T) {
	events := logOf(entity.EventCreado, entity.EventXMLGenerado, entity.EventTimbrado, entity.EventEnRuta)
	last := events[3].Timestamp

	assert.Empty(t, lifecycle.Alerts(events, last.Add(71*time.Hour), lifecycle.DefaultThresholds))

	alerts := lifecycle.Alerts(events, last.Add(73*time.Hour), lifecycle.DefaultThresholds)
	require.Len(t, alerts, 1)
	assert.Equal(t, lifecycle.AlertTransitStale, alerts[0].Code)
}

func TestAlerts_EntregadoNoAlerta(t *testing.T) {
	events := logOf(entity.EventCreado, entity.EventXMLGenerado, entity.EventTimbrado, entity.EventIniciado, entity.EventEntregado)
	assert.Empty(t, lifecycle.Alerts(events, t0.Add(1000*time.Hour), lifecycle.DefaultThresholds))
}

func TestAlerts_TimbradoTrasCancelacionRechazada(t *testing.T) {
	events := logOf(entity.EventCreado, entity.EventXMLGenerado, entity.EventTimbrado,
		entity.EventCancelacionPendiente, entity.EventCancelacionRechazada)
	stampedAt := events[2].Timestamp

	alerts := lifecycle.Alerts(events, stampedAt.Add(30*24*time.Hour), lifecycle.DefaultThresholds)
	require.Len(t, alerts, 1, "la cancelación rechazada devuelve el documento a timbrado")
	assert.Equal(t, lifecycle.AlertStampedNotInTransit, alerts[0].Code)
	assert.Equal(t, stampedAt, alerts[0].Since, "el plazo corre desde el timbrado")
}

func TestAlerts_TransitoTrasCancelacionRechazada(t *testing.T) {
	events := logOf(entity.EventCreado, entity.EventXMLGenerado, entity.EventTimbrado, entity.EventEnRuta,
		entity.EventCancelacionPendiente, entity.EventCancelacionRechazada)
	lastTransit := events[3].Timestamp

	assert.Empty(t, lifecycle.Alerts(events, lastTransit.Add(71*time.Hour), lifecycle.DefaultThresholds))

	alerts := lifecycle.Alerts(events, lastTransit.Add(73*time.Hour), lifecycle.DefaultThresholds)
	require.Len(t, alerts, 1)
	assert.Equal(t, lifecycle.AlertTransitStale, alerts[0].Code)
	assert.Equal(t, lastTransit, alerts[0].Since)
}

func TestAlerts_CancelacionConErrorNoReiniciaElPlazo(t *testing.T) {
	events := logOf(entity.EventCreado, entity.EventXMLGenerado, entity.EventTimbrado, entity.EventCancelacionError)
	stampedAt := events[2].Timestamp

	alerts := lifecycle.Alerts(events, stampedAt.Add(25*time.Hour), lifecycle.DefaultThresholds)
	require.Len(t, alerts, 1)
	assert.Equal(t, lifecycle.AlertStampedNotInTransit, alerts[0].Code)
}

func TestAlerts_CancelacionPendienteNoAlerta(t *testing.T) {
	events := logOf(entity.EventCreado, entity.EventXMLGenerado, entity.EventTimbrado, entity.EventCancelacionPendiente)
	assert.Empty(t, lifecycle.Alerts(events, t0.Add(1000*time.Hour), lifecycle.DefaultThresholds))
}
