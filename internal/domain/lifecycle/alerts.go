package lifecycle

import (
	"time"

	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
)

// Códigos de alerta derivadas.
const (
	AlertStampedNotInTransit = "timbrado_sin_transito"
	AlertTransitStale        = "transito_prolongado"
)

// Alert alerta calculada; no se persiste.
type Alert struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Since   time.Time `json:"since"`
}

// Thresholds umbrales de las alertas.
type Thresholds struct {
	StampedWithoutTransit time.Duration
	TransitStale          time.Duration
}

// DefaultThresholds 24 h timbrado sin tránsito, 72 h en tránsito sin novedades.
var DefaultThresholds = Thresholds{
	StampedWithoutTransit: 24 * time.Hour,
	TransitStale:          72 * time.Hour,
}

// Alerts evalúa el estado vigente contra now. El plazo corre desde el evento que fijó
// ese estado, de modo que una cancelación rechazada o fallida no reinicia el reloj.
func Alerts(events []*entity.LifecycleEvent, now time.Time, th Thresholds) []Alert {
	alerts := []Alert{}
	status, since, err := replay(events)
	if err != nil || since.IsZero() {
		return alerts
	}
	elapsed := now.Sub(since)
	switch status {
	case entity.StatusTimbrado:
		if elapsed > th.StampedWithoutTransit {
			alerts = append(alerts, Alert{
				Code:    AlertStampedNotInTransit,
				Message: "documento timbrado sin iniciar tránsito",
				Since:   since,
			})
		}
	case entity.StatusEnTransito:
		if elapsed > th.TransitStale {
			alerts = append(alerts, Alert{
				Code:    AlertTransitStale,
				Message: "tránsito demasiado largo sin actualizaciones",
				Since:   since,
			})
		}
	}
	return alerts
}
