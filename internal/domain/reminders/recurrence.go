package reminders

import "time"

const (
	hoursPerDay  = 24
	hoursPerWeek = 7 * 24
)

// Advance calcula el siguiente disparo a partir del disparo actual (no de now).
// Devuelve el nuevo next y si el recordatorio sigue activo.
//
//	once   -> inactivo, next sin cambio
//	daily  -> +24h
//	weekly -> +168h
//	hourly -> +1h
//	custom -> +interval h; sin interval no avanza
func Advance(freq Frequency, intervalHours *int, next time.Time) (time.Time, bool) {
	switch freq {
	case FrequencyOnce:
		return next, false
	case FrequencyDaily:
		return next.Add(hoursPerDay * time.Hour), true
	case FrequencyWeekly:
		return next.Add(hoursPerWeek * time.Hour), true
	case FrequencyHourly:
		return next.Add(time.Hour), true
	case FrequencyCustom:
		if intervalHours == nil || *intervalHours <= 0 {
			return next, true
		}
		return next.Add(time.Duration(*intervalHours) * time.Hour), true
	default:
		return next, true
	}
}

// CanAdvance indica si Advance produce progreso (o retira). Un custom sin
// intervalo quedaría vencido para siempre.
func CanAdvance(freq Frequency, intervalHours *int) bool {
	if freq == FrequencyCustom {
		return intervalHours != nil && *intervalHours > 0
	}
	return freq.Valid()
}

// InitialTrigger devuelve el primer disparo y el intervalo efectivo.
// once (o desconocido) no tiene disparo inicial: queda inerte salvo que el
// llamador fije uno explícito.
func InitialTrigger(freq Frequency, start time.Time, intervalHours *int) (*time.Time, *int) {
	var next time.Time
	switch freq {
	case FrequencyDaily:
		h := hoursPerDay
		next = start.Add(hoursPerDay * time.Hour)
		return &next, &h
	case FrequencyWeekly:
		next = start.Add(hoursPerWeek * time.Hour)
	case FrequencyHourly:
		next = start.Add(time.Hour)
	case FrequencyCustom:
		if intervalHours == nil || *intervalHours <= 0 {
			return nil, intervalHours
		}
		next = start.Add(time.Duration(*intervalHours) * time.Hour)
	default:
		return nil, intervalHours
	}
	return &next, intervalHours
}

// ValidateSchedule: frecuencia conocida y custom con intervalo positivo.
func ValidateSchedule(freq Frequency, intervalHours *int) error {
	if !freq.Valid() {
		return ErrInvalidInput
	}
	if intervalHours != nil && *intervalHours <= 0 {
		return ErrInvalidInput
	}
	if freq == FrequencyCustom && intervalHours == nil {
		return ErrBadState
	}
	return nil
}
