package clock

import "time"

// Clock entrega la hora actual; se inyecta para poder fijarla en tests.
type Clock interface {
	Now() time.Time
}

// Func adapta una función a Clock.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

// System usa time.Now en UTC.
var System Clock = Func(func() time.Time { return time.Now().UTC() })

// Fixed siempre devuelve t.
func Fixed(t time.Time) Clock {
	return Func(func() time.Time { return t })
}
