package bridge

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nurcrm/backend/internal/infrastructure/config"
)

// ProcessState is the lifecycle state of one tenant's bridge process
type ProcessState string

const (
	StateStarting ProcessState = "STARTING"
	StateRunning  ProcessState = "RUNNING"
	StateBackoff  ProcessState = "BACKOFF"
	StateDown     ProcessState = "DOWN"
	StateStopped  ProcessState = "STOPPED"
)

// Runner is one launchable bridge process instance
type Runner interface {
	Start() error
	// Wait blocks until the process exits
	Wait() error
	// Terminate asks the process to stop, escalating to kill after the timeout
	Terminate(timeout time.Duration) error
}

// RunnerFactory builds a fresh Runner for a tenant. Each restart gets a new
// Runner; a Runner is never reused after exit.
type RunnerFactory func(tenantID uuid.UUID) Runner

// OnTenantDown is invoked once when a tenant's process exhausts its restart
// budget and the supervisor gives up until the next explicit start.
type OnTenantDown func(tenantID uuid.UUID)

// Supervisor runs and restarts one bridge process per tenant.
// Crashed processes are restarted with exponential backoff; after the
// restart budget is spent the tenant goes DOWN until started again.
type Supervisor struct {
	cfg     config.BridgeConfig
	logger  *zap.Logger
	factory RunnerFactory
	onDown  OnTenantDown

	mu    sync.Mutex
	procs map[uuid.UUID]*supervised

	healthOnce sync.Once
	healthStop chan struct{}
	wg         sync.WaitGroup
}

type supervised struct {
	tenantID uuid.UUID

	mu       sync.Mutex
	state    ProcessState
	restarts int
	runner   Runner
	stopReq  bool
	done     chan struct{}
}

func (p *supervised) getState() ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *supervised) setState(state ProcessState) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

func (p *supervised) setRunner(r Runner) {
	p.mu.Lock()
	p.runner = r
	p.mu.Unlock()
}

func (p *supervised) isStopRequested() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopReq
}

func (p *supervised) incrementRestarts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restarts++
	return p.restarts
}

func (p *supervised) resetRestarts() {
	p.mu.Lock()
	p.restarts = 0
	p.mu.Unlock()
}

// SupervisorOption configures a Supervisor
type SupervisorOption func(*Supervisor)

// WithRunnerFactory overrides how bridge processes are launched
func WithRunnerFactory(factory RunnerFactory) SupervisorOption {
	return func(s *Supervisor) {
		s.factory = factory
	}
}

// WithOnTenantDown sets the callback fired when a tenant's restart budget
// is exhausted
func WithOnTenantDown(fn OnTenantDown) SupervisorOption {
	return func(s *Supervisor) {
		s.onDown = fn
	}
}

// NewSupervisor creates a bridge process supervisor
func NewSupervisor(cfg config.BridgeConfig, logger *zap.Logger, opts ...SupervisorOption) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Supervisor{
		cfg:        cfg,
		logger:     logger,
		procs:      make(map[uuid.UUID]*supervised),
		healthStop: make(chan struct{}),
	}
	s.factory = s.execRunner
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartTenant launches the tenant's bridge process. Starting a tenant that
// is already STARTING or RUNNING is a no-op; a DOWN or STOPPED tenant gets
// a fresh restart budget.
func (s *Supervisor) StartTenant(_ context.Context, tenantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.procs[tenantID]; ok {
		switch p.getState() {
		case StateStarting, StateRunning, StateBackoff:
			return nil
		}
	}

	p := &supervised{
		tenantID: tenantID,
		state:    StateStarting,
		done:     make(chan struct{}),
	}
	s.procs[tenantID] = p

	s.wg.Add(1)
	go s.supervise(p)

	s.logger.Info("bridge process starting", zap.String("tenant_id", tenantID.String()))
	return nil
}

// StopTenant stops the tenant's bridge process and disables restarts.
// Stopping an unknown or already stopped tenant is a no-op.
func (s *Supervisor) StopTenant(ctx context.Context, tenantID uuid.UUID) error {
	s.mu.Lock()
	p, ok := s.procs[tenantID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	p.mu.Lock()
	if p.stopReq || p.state == StateStopped || p.state == StateDown {
		alreadyFinal := p.state == StateStopped || p.state == StateDown
		p.stopReq = true
		p.mu.Unlock()
		if alreadyFinal {
			return nil
		}
	} else {
		p.stopReq = true
		runner := p.runner
		p.mu.Unlock()

		if runner != nil {
			if err := runner.Terminate(s.cfg.StopTimeout); err != nil {
				s.logger.Warn("bridge process terminate failed",
					zap.String("tenant_id", tenantID.String()),
					zap.Error(err),
				)
			}
		}
	}

	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("bridge process stopped", zap.String("tenant_id", tenantID.String()))
	return nil
}

// Status returns the tenant's process state, or StateStopped when the
// tenant has no process.
func (s *Supervisor) Status(tenantID uuid.UUID) ProcessState {
	s.mu.Lock()
	p, ok := s.procs[tenantID]
	s.mu.Unlock()
	if !ok {
		return StateStopped
	}
	return p.getState()
}

// StartHealthLoop begins periodic health reporting. Call once.
func (s *Supervisor) StartHealthLoop() {
	s.healthOnce.Do(func() {
		s.wg.Add(1)
		go s.healthLoop()
	})
}

// Shutdown stops all tenant processes and the health loop
func (s *Supervisor) Shutdown(ctx context.Context) error {
	close(s.healthStop)

	s.mu.Lock()
	tenants := make([]uuid.UUID, 0, len(s.procs))
	for id := range s.procs {
		tenants = append(tenants, id)
	}
	s.mu.Unlock()

	for _, id := range tenants {
		if err := s.StopTenant(ctx, id); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) supervise(p *supervised) {
	defer s.wg.Done()
	defer close(p.done)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.InitialBackoff
	policy.MaxInterval = s.cfg.MaxBackoff
	policy.MaxElapsedTime = 0

	for {
		if p.isStopRequested() {
			p.setState(StateStopped)
			return
		}

		runner := s.factory(p.tenantID)
		p.setRunner(runner)

		if err := runner.Start(); err != nil {
			s.logger.Error("bridge process failed to start",
				zap.String("tenant_id", p.tenantID.String()),
				zap.Error(err),
			)
			if !s.scheduleRestart(p, policy) {
				return
			}
			continue
		}

		p.setState(StateRunning)
		startedAt := time.Now()
		s.logger.Info("bridge process running", zap.String("tenant_id", p.tenantID.String()))

		err := runner.Wait()

		if p.isStopRequested() {
			p.setState(StateStopped)
			return
		}

		s.logger.Warn("bridge process exited",
			zap.String("tenant_id", p.tenantID.String()),
			zap.Duration("uptime", time.Since(startedAt)),
			zap.Error(err),
		)

		// A process that held steady gets its restart budget back.
		if time.Since(startedAt) > s.cfg.MaxBackoff {
			p.resetRestarts()
			policy.Reset()
		}

		if !s.scheduleRestart(p, policy) {
			return
		}
	}
}

// scheduleRestart waits out the backoff before the next attempt.
// Returns false when the budget is exhausted or a stop was requested.
func (s *Supervisor) scheduleRestart(p *supervised, policy *backoff.ExponentialBackOff) bool {
	restarts := p.incrementRestarts()
	if restarts > s.cfg.MaxRestarts {
		p.setState(StateDown)
		s.logger.Error("bridge process gave up after restart budget",
			zap.String("tenant_id", p.tenantID.String()),
			zap.Int("restarts", restarts-1),
		)
		if s.onDown != nil {
			s.onDown(p.tenantID)
		}
		return false
	}

	wait := policy.NextBackOff()
	p.setState(StateBackoff)
	s.logger.Info("bridge process restart scheduled",
		zap.String("tenant_id", p.tenantID.String()),
		zap.Int("attempt", restarts),
		zap.Duration("backoff", wait),
	)

	timer := time.NewTimer(wait)
	defer timer.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timer.C:
			p.setState(StateStarting)
			return true
		case <-ticker.C:
			if p.isStopRequested() {
				p.setState(StateStopped)
				return false
			}
		}
	}
}

func (s *Supervisor) healthLoop() {
	defer s.wg.Done()

	interval := s.cfg.HealthInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.healthStop:
			return
		case <-ticker.C:
			s.mu.Lock()
			for id, p := range s.procs {
				state := p.getState()
				if state == StateDown || state == StateBackoff {
					s.logger.Warn("bridge process unhealthy",
						zap.String("tenant_id", id.String()),
						zap.String("state", string(state)),
					)
				}
			}
			s.mu.Unlock()
		}
	}
}

// execRunner is the default factory launching the configured bridge binary.
// Each tenant gets an isolated state directory so sessions never mix.
func (s *Supervisor) execRunner(tenantID uuid.UUID) Runner {
	stateDir := filepath.Join(s.cfg.StateDir, tenantID.String())

	args := append([]string{}, s.cfg.Args...)
	cmd := exec.Command(s.cfg.Executable, args...)
	cmd.Env = append(os.Environ(),
		"BRIDGE_TENANT_ID="+tenantID.String(),
		"BRIDGE_STATE_DIR="+stateDir,
		"BRIDGE_WEBHOOK_SECRET="+s.cfg.WebhookSecret,
		"BRIDGE_WEBHOOK_BASE_URL="+fmt.Sprintf("%s/api/v1/webhooks/bridge/%s", s.cfg.PublicBaseURL, tenantID.String()),
	)

	return &execProcess{cmd: cmd, stateDir: stateDir}
}

type execProcess struct {
	cmd      *exec.Cmd
	stateDir string
}

func (p *execProcess) Start() error {
	if err := os.MkdirAll(p.stateDir, 0o700); err != nil {
		return fmt.Errorf("bridge: failed to create state dir: %w", err)
	}
	return p.cmd.Start()
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Terminate(timeout time.Duration) error {
	if p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		return p.cmd.Process.Kill()
	}

	// Escalate to kill if the process ignores the interrupt. Killing an
	// already-exited process is a harmless error.
	time.AfterFunc(timeout, func() {
		_ = p.cmd.Process.Kill()
	})
	return nil
}
