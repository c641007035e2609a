package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"medication-reminders/internal/domain/reminders"
	"medication-reminders/internal/platform/logger"
	"medication-reminders/internal/ports/clock"
	"medication-reminders/internal/ports/notify"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultConcurrency  = 4
	// DefaultCycleTimeout acota un ciclo; igual al TTL por defecto del lock distribuido.
	DefaultCycleTimeout = 2 * time.Minute

	// DefaultBody se usa cuando el recordatorio no tiene mensaje.
	DefaultBody = "Tienes un recordatorio pendiente."
)

// Outcome es lo que pasó con un recordatorio en un ciclo.
type Outcome string

const (
	OutcomeNotified    Outcome = "notified"
	OutcomeRetired     Outcome = "retired"
	OutcomeDeactivated Outcome = "deactivated"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeFailed      Outcome = "failed"
)

// Store es lo que el daemon necesita del repositorio de recordatorios.
type Store interface {
	ListDue(ctx context.Context, now time.Time) ([]reminders.Reminder, error)
	UpdateLocked(ctx context.Context, id string, fn func(reminders.Reminder) (reminders.Reminder, error)) (reminders.Reminder, error)
}

type Resolver interface {
	Resolve(ctx context.Context, r reminders.Reminder) ([]string, error)
}

// CycleLock da exclusividad entre procesos (p.ej. redislock.CycleLock).
type CycleLock interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// CycleResult resume un ciclo.
type CycleResult struct {
	Due         int
	Notified    int
	Retired     int
	Deactivated int
	Skipped     int
	Failed      int
	// LockBusy: otro proceso tenía el lock; no se hizo nada.
	LockBusy bool
}

func (c *CycleResult) add(o Outcome) {
	switch o {
	case OutcomeNotified:
		c.Notified++
	case OutcomeRetired:
		c.Retired++
	case OutcomeDeactivated:
		c.Deactivated++
	case OutcomeSkipped:
		c.Skipped++
	case OutcomeFailed:
		c.Failed++
	}
}

var errNotDue = errors.New("reminder no longer due")

// Daemon dispara los recordatorios vencidos cada PollInterval.
//
// Los ciclos no se solapan (singleflight, también entre ProcessDueOnce y el
// loop). Dentro de un ciclo cada recordatorio se procesa bajo el lock de su
// fila y una falla no afecta a los demás.
type Daemon struct {
	store      Store
	meds       reminders.MedicationCatalog
	recipients Resolver
	notifier   notify.Notifier

	clock       clock.Clock
	log         logger.Logger
	metrics     *Metrics
	lock        CycleLock
	interval     time.Duration
	concurrency  int
	cycleTimeout time.Duration

	sf singleflight.Group

	mu      sync.Mutex
	running bool
	life    context.Context // contexto del loop mientras corre
	cancel  context.CancelFunc
	done    chan struct{}
}

type Option func(*Daemon)

func WithPollInterval(d time.Duration) Option {
	return func(x *Daemon) {
		if d > 0 {
			x.interval = d
		}
	}
}

func WithConcurrency(n int) Option {
	return func(x *Daemon) {
		if n > 0 {
			x.concurrency = n
		}
	}
}

func WithCycleTimeout(d time.Duration) Option {
	return func(x *Daemon) {
		if d > 0 {
			x.cycleTimeout = d
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(x *Daemon) {
		if c != nil {
			x.clock = c
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(x *Daemon) {
		if l != nil {
			x.log = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(x *Daemon) { x.metrics = m }
}

// WithLock activa la exclusividad entre procesos; sin lock cada proceso corre sus ciclos.
func WithLock(l CycleLock) Option {
	return func(x *Daemon) { x.lock = l }
}

func New(store Store, meds reminders.MedicationCatalog, recipients Resolver, notifier notify.Notifier, opts ...Option) *Daemon {
	d := &Daemon{
		store:       store,
		meds:        meds,
		recipients:  recipients,
		notifier:    notifier,
		clock:       clock.System,
		log:         logger.Nop(),
		interval:     DefaultPollInterval,
		concurrency:  DefaultConcurrency,
		cycleTimeout: DefaultCycleTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With(map[string]any{"component": "scheduler"})
	return d
}

// Start lanza el loop. Llamarlo con el daemon ya corriendo no hace nada y devuelve false.
func (d *Daemon) Start(parent context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		d.log.Info("scheduler already running, skipping start", nil)
		return false
	}

	ctx, cancel := context.WithCancel(parent)
	d.life = ctx
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running = true

	go d.loop(ctx, d.done)

	d.log.Info("scheduler started", map[string]any{
		"poll_interval": d.interval,
		"concurrency":   d.concurrency,
		"distributed":   d.lock != nil,
	})
	return true
}

// Stop detiene el loop y espera el ciclo en curso. Idempotente.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel, done := d.cancel, d.done
	d.clearLocked()
	d.mu.Unlock()

	cancel()
	<-done
	d.log.Info("scheduler stopped", nil)
}

func (d *Daemon) clearLocked() {
	d.running = false
	d.life = nil
	d.cancel = nil
	d.done = nil
}

func (d *Daemon) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Daemon) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer d.exited(done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// el loop espera su ciclo completo; al cancelarse ctx el ciclo se corta solo
			r := <-d.cycle(ctx)
			if r.Err != nil && ctx.Err() == nil {
				// se reintenta en el próximo tick
				d.log.Error("scheduler cycle failed", map[string]any{"error": r.Err})
			}
		}
	}
}

// exited libera el estado si el loop terminó por el contexto padre y no por Stop.
func (d *Daemon) exited(done chan struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done != done {
		return
	}
	d.cancel()
	d.clearLocked()
	d.log.Info("scheduler stopped, parent context done", nil)
}

// ProcessDueOnce corre un ciclo. Si ya hay uno en curso, espera y comparte su
// resultado. Cancelar ctx solo deja de esperar: el ciclo compartido sigue.
func (d *Daemon) ProcessDueOnce(ctx context.Context) (CycleResult, error) {
	select {
	case <-ctx.Done():
		return CycleResult{}, ctx.Err()
	case r := <-d.cycle(ctx):
		res, _ := r.Val.(CycleResult)
		return res, r.Err
	}
}

func (d *Daemon) cycle(ctx context.Context) <-chan singleflight.Result {
	return d.sf.DoChan("cycle", func() (any, error) {
		cctx, cancel := d.cycleContext(ctx)
		defer cancel()
		return d.runCycle(cctx)
	})
}

// cycleContext conserva los valores de parent pero no su cancelación; el
// ciclo queda acotado por cycleTimeout y por la vida del loop si está corriendo.
func (d *Daemon) cycleContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), d.cycleTimeout)

	d.mu.Lock()
	life := d.life
	d.mu.Unlock()
	if life == nil {
		return ctx, cancel
	}

	stop := context.AfterFunc(life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (d *Daemon) runCycle(ctx context.Context) (CycleResult, error) {
	start := time.Now()
	var res CycleResult

	if d.lock != nil {
		ok, err := d.lock.TryLock(ctx)
		if err != nil {
			d.metrics.observeCycle("error", time.Since(start))
			return res, fmt.Errorf("acquire cycle lock: %w", err)
		}
		if !ok {
			res.LockBusy = true
			d.metrics.observeCycle("lock_busy", time.Since(start))
			d.log.Debug("cycle lock held elsewhere, skipping", nil)
			return res, nil
		}
		defer func() {
			if err := d.lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				d.log.Warn("release cycle lock", map[string]any{"error": err})
			}
		}()
	}

	now := d.clock.Now()
	due, err := d.store.ListDue(ctx, now)
	if err != nil {
		d.metrics.observeCycle("error", time.Since(start))
		return res, fmt.Errorf("list due reminders: %w", err)
	}
	res.Due = len(due)
	d.metrics.observeDue(len(due))

	if len(due) == 0 {
		d.metrics.observeCycle("ok", time.Since(start))
		return res, nil
	}

	d.log.Info("processing due reminders", map[string]any{"count": len(due)})

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for _, r := range due {
		g.Go(func() error {
			o := d.processOne(ctx, r.ID, now)
			d.metrics.observeOutcome(o)
			mu.Lock()
			res.add(o)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	d.metrics.observeCycle("ok", time.Since(start))
	d.log.Info("cycle completed", map[string]any{
		"due":         res.Due,
		"notified":    res.Notified,
		"retired":     res.Retired,
		"deactivated": res.Deactivated,
		"failed":      res.Failed,
	})
	return res, nil
}

// processOne atiende un recordatorio bajo el lock de su fila. Si la
// persistencia falla después de notificar, el recordatorio queda sin avanzar
// y se vuelve a notificar en el próximo ciclo.
func (d *Daemon) processOne(ctx context.Context, id string, now time.Time) (outcome Outcome) {
	log := d.log.With(map[string]any{"reminder_id": id})

	defer func() {
		if p := recover(); p != nil {
			log.Error("reminder processing panic", map[string]any{"panic": p})
			outcome = OutcomeFailed
		}
	}()

	_, err := d.store.UpdateLocked(ctx, id, func(cur reminders.Reminder) (reminders.Reminder, error) {
		if !cur.IsDue(now) {
			return cur, errNotDue
		}

		expired, err := d.medicationFinished(ctx, cur, now)
		if err != nil {
			return cur, err
		}
		if expired {
			cur.IsActive = false
			cur.UpdatedAt = now
			outcome = OutcomeDeactivated
			return cur, nil
		}

		recipients, err := d.recipients.Resolve(ctx, cur)
		if err != nil {
			return cur, fmt.Errorf("resolve recipients: %w", err)
		}

		d.notifier.Send(ctx, buildNotification(cur, recipients))

		if !reminders.CanAdvance(cur.Frequency, cur.IntervalHours) {
			log.Warn("reminder cannot advance, it will fire again next cycle", map[string]any{
				"frequency": string(cur.Frequency),
			})
		}

		next, active := reminders.Advance(cur.Frequency, cur.IntervalHours, *cur.NextTriggerTime)
		cur.NextTriggerTime = &next
		cur.IsActive = active
		cur.UpdatedAt = now

		outcome = OutcomeNotified
		if !active {
			outcome = OutcomeRetired
		}
		return cur, nil
	})

	switch {
	case err == nil:
		if outcome == OutcomeDeactivated {
			log.Info("reminder deactivated, medication finished", nil)
		}
		return outcome
	case errors.Is(err, errNotDue), errors.Is(err, reminders.ErrNotFound):
		// otro proceso lo atendió o lo borraron entre ListDue y el lock
		return OutcomeSkipped
	default:
		log.Error("reminder processing failed", map[string]any{"error": err})
		return OutcomeFailed
	}
}

// medicationFinished: end_date anterior a hoy. Un medicamento que ya no
// existe cuenta como finalizado.
func (d *Daemon) medicationFinished(ctx context.Context, r reminders.Reminder, now time.Time) (bool, error) {
	med, err := d.meds.Get(ctx, r.MedicationID)
	if err != nil {
		if errors.Is(err, reminders.ErrNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("load medication %s: %w", r.MedicationID, err)
	}
	return med.ExpiredAt(now), nil
}

func buildNotification(r reminders.Reminder, recipients []string) notify.Notification {
	body := r.Message
	if body == "" {
		body = DefaultBody
	}
	return notify.Notification{
		Recipients: recipients,
		Title:      r.Title,
		Body:       body,
		Metadata: map[string]string{
			notify.MetaReminderID:   r.ID,
			notify.MetaMedicationID: r.MedicationID,
			notify.MetaPatientID:    r.PatientUserID,
		},
	}
}
