package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/clients"
	cfg "github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/config"
)

// ErrOperationInProgress is returned by Start, Stop and Launch while a start
// or stop is already running. No request is sent in that case.
var ErrOperationInProgress = errors.New("operation already in progress")

// ErrNotReady is returned by Launch when the start request succeeded but the
// app was not yet running after the settle delay. It is a warning, the app
// may still come up.
var ErrNotReady = errors.New("collection app not ready yet")

// launchBudget bounds a debounced launch on top of the settle delay.
const launchBudget = 30 * time.Second

// ControlPlane is the backend surface that runs the collection app.
// *clients.HTTP satisfies it.
type ControlPlane interface {
	StartApp(ctx context.Context) (*clients.ControlResp, error)
	StopApp(ctx context.Context) (*clients.ControlResp, error)
	AppStatus(ctx context.Context) (*clients.AppStatusResp, error)
	AppConfig(ctx context.Context) (*clients.AppConfigResp, error)
}

type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateUnknown State = "unknown"
)

// Access is where a running collection app can be reached.
type Access struct {
	Host string
	Port int
	URL  string
}

type Status struct {
	State  State
	Access Access
	Err    error
}

type Options struct {
	Settle      time.Duration
	StopConfirm time.Duration
	StopRecover time.Duration
	Debounce    time.Duration
	DefaultHost string
	DefaultPort int
}

// OptionsFrom maps the supervisor config section onto Options.
func OptionsFrom(c cfg.Supervisor) Options {
	return Options{
		Settle:      cfg.DurMillis(c.SettleMillis),
		StopConfirm: cfg.DurMillis(c.StopConfirmMillis),
		StopRecover: cfg.DurMillis(c.StopRecoverMillis),
		Debounce:    cfg.DurMillis(c.DebounceMillis),
		DefaultHost: c.DefaultHost,
		DefaultPort: c.DefaultPort,
	}
}

// Supervisor starts, stops and observes the collection app. At most one of
// starting and stopping is set at any time.
type Supervisor struct {
	cp   ControlPlane
	ev   Events
	log  logrus.FieldLogger
	opts Options

	mu       sync.Mutex
	starting bool
	stopping bool
	last     State
	pending  *launchCall
}

type launchCall struct {
	timer   *time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
	done    chan struct{}
	access  Access
	err     error
}

func New(cp ControlPlane, opts Options, ev Events, log logrus.FieldLogger) *Supervisor {
	if ev == nil {
		ev = NopEvents{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.DefaultHost == "" {
		opts.DefaultHost = "localhost"
	}
	if opts.DefaultPort == 0 {
		opts.DefaultPort = 5001
	}
	return &Supervisor{cp: cp, ev: ev, log: log, opts: opts}
}

// Busy reports the in-flight flags.
func (s *Supervisor) Busy() (starting, stopping bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starting, s.stopping
}

// Poll queries the app status. A failed query is reported as unknown, never
// as stopped.
func (s *Supervisor) Poll(ctx context.Context) Status {
	resp, err := s.cp.AppStatus(ctx)
	var st Status
	switch {
	case err != nil:
		s.log.WithError(err).Warn("collection app status")
		st = Status{State: StateUnknown, Err: err}
	case resp.Running:
		st = Status{State: StateRunning, Access: s.access(ctx)}
	default:
		st = Status{State: StateStopped}
	}
	s.publish(st)
	return st
}

func (s *Supervisor) access(ctx context.Context) Access {
	host, port := s.opts.DefaultHost, s.opts.DefaultPort
	c, err := s.cp.AppConfig(ctx)
	if err != nil {
		s.log.WithError(err).Debug("collection app config, using defaults")
	} else {
		if c.Host != "" && c.Host != "0.0.0.0" {
			host = c.Host
		}
		if c.Port > 0 {
			port = c.Port
		}
	}
	return Access{
		Host: host,
		Port: port,
		URL:  "https://" + net.JoinHostPort(host, strconv.Itoa(port)),
	}
}

func (s *Supervisor) publish(st Status) {
	s.mu.Lock()
	changed := s.last != st.State
	s.last = st.State
	s.mu.Unlock()
	if changed {
		s.ev.StatusChanged(st)
	}
}

func (s *Supervisor) begin(flag *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.starting || s.stopping {
		return ErrOperationInProgress
	}
	*flag = true
	return nil
}

func (s *Supervisor) end(flag *bool) {
	s.mu.Lock()
	*flag = false
	s.mu.Unlock()
}

// Start asks the backend to start the app, waits for it to settle and polls.
// An app that is not yet running after the settle delay is a warning only.
func (s *Supervisor) Start(ctx context.Context) (Status, error) {
	if err := s.begin(&s.starting); err != nil {
		return Status{}, err
	}
	defer s.end(&s.starting)

	s.ev.Notify(LevelInfo, "Starting collection app...")
	resp, err := s.cp.StartApp(ctx)
	if err != nil {
		s.log.WithError(err).Error("start collection app")
		s.ev.Notify(LevelError, "Failed to start collection app: "+reason(err))
		return Status{State: StateUnknown, Err: err}, fmt.Errorf("start: %w", err)
	}
	s.ev.Notify(LevelSuccess, orDefault(resp.Message, "Collection app started"))

	if err := sleep(ctx, s.opts.Settle); err != nil {
		return Status{State: StateUnknown, Err: err}, err
	}
	st := s.Poll(ctx)
	if st.State != StateRunning {
		s.ev.Notify(LevelWarning, "Collection app may still be starting. Check its status again shortly.")
	}
	return st, nil
}

// Stop asks the backend to stop the app. On success the state is reported
// as stopped right away and confirmed by a later poll.
func (s *Supervisor) Stop(ctx context.Context) (Status, error) {
	if err := s.begin(&s.stopping); err != nil {
		return Status{}, err
	}
	defer s.end(&s.stopping)

	s.ev.Notify(LevelInfo, "Stopping collection app...")
	resp, err := s.cp.StopApp(ctx)
	if err != nil {
		s.log.WithError(err).Error("stop collection app")
		s.ev.Notify(LevelError, "Failed to stop collection app: "+reason(err))
		if serr := sleep(ctx, s.opts.StopRecover); serr != nil {
			return Status{State: StateUnknown, Err: err}, fmt.Errorf("stop: %w", err)
		}
		return s.Poll(ctx), fmt.Errorf("stop: %w", err)
	}
	s.publish(Status{State: StateStopped})
	s.ev.Notify(LevelSuccess, orDefault(resp.Message, "Collection app stopped"))

	if err := sleep(ctx, s.opts.StopConfirm); err != nil {
		return Status{State: StateStopped}, nil
	}
	return s.Poll(ctx), nil
}

// Launch returns the access descriptor of a running app, starting it first
// when needed. Calls within the debounce window collapse into one run and
// share its outcome. The run is cancelled once every caller has given up.
func (s *Supervisor) Launch(ctx context.Context) (Access, error) {
	s.mu.Lock()
	c := s.pending
	if c == nil {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.Settle+launchBudget)
		c = &launchCall{ctx: rctx, cancel: cancel, done: make(chan struct{})}
		s.pending = c
		c.timer = time.AfterFunc(s.opts.Debounce, func() { s.runLaunch(c) })
	} else {
		c.timer.Reset(s.opts.Debounce)
	}
	c.waiters++
	s.mu.Unlock()

	select {
	case <-c.done:
		return c.access, c.err
	case <-ctx.Done():
		s.mu.Lock()
		c.waiters--
		if c.waiters == 0 {
			c.cancel()
			if s.pending == c {
				c.timer.Stop()
				s.pending = nil
			}
		}
		s.mu.Unlock()
		return Access{}, ctx.Err()
	}
}

func (s *Supervisor) runLaunch(c *launchCall) {
	s.mu.Lock()
	if s.pending != c {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	busy := s.starting || s.stopping
	s.mu.Unlock()
	defer close(c.done)
	defer c.cancel()

	if busy {
		c.err = ErrOperationInProgress
		return
	}
	if err := c.ctx.Err(); err != nil {
		c.err = err
		return
	}
	if st := s.Poll(c.ctx); st.State == StateRunning {
		s.ev.AccessReady(st.Access)
		c.access = st.Access
		return
	}
	st, err := s.Start(c.ctx)
	if err != nil {
		c.err = err
		return
	}
	c.access = st.Access
	if st.State != StateRunning {
		// Start has already warned about it
		c.err = fmt.Errorf("launch: %w (app is %s)", ErrNotReady, st.State)
		return
	}
	s.ev.AccessReady(st.Access)
}

// Watch polls every interval until ctx is done.
func (s *Supervisor) Watch(ctx context.Context, every time.Duration) {
	s.Poll(ctx)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Poll(ctx)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func reason(err error) string {
	var rej *clients.RejectedError
	if errors.As(err, &rej) && rej.Message != "" {
		return rej.Message
	}
	if errors.Is(err, clients.ErrNetwork) {
		return "server unreachable"
	}
	return err.Error()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
