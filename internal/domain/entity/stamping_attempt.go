package entity

import "time"

// StampingAttempt intento de timbrado contra un PAC. Efímero: se registra en log y métricas.
type StampingAttempt struct {
	Provider     string
	Attempt      int
	Timestamp    time.Time
	Success      bool
	ErrorMessage string
	Latency      time.Duration
}
