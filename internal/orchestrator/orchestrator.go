package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dply/internal/cluster"
	"dply/internal/model"
	"dply/internal/secretstore"
	"dply/internal/store"
	"dply/pkg/logging"
)

const subsystem = "orchestrator"

// CreateSpec is the user-supplied part of an environment.
type CreateSpec struct {
	Name        string
	Description string
}

// Service is the environment lifecycle orchestrator. Environment rows are
// mutated exclusively by this service and its provisioning tasks.
type Service struct {
	envs     store.Environments
	envUsers store.EnvironmentUsers
	secrets  secretstore.Store
	backend  cluster.ControlPlane

	registry *registry
	attempts int
	sleep    func(time.Duration) // overrides retry sleeping in tests
	wg       sync.WaitGroup
}

// Option customises a Service.
type Option func(*Service)

// WithAttempts overrides the provisioning attempt budget.
func WithAttempts(n int) Option {
	return func(s *Service) { s.attempts = n }
}

// WithSleepFunc replaces the retry backoff sleep. Only useful in tests.
func WithSleepFunc(f func(time.Duration)) Option {
	return func(s *Service) { s.sleep = f }
}

// New creates the environment orchestrator.
func New(st *store.Store, secrets secretstore.Store, backend cluster.ControlPlane, opts ...Option) *Service {
	s := &Service{
		envs:     st.Environments,
		envUsers: st.EnvironmentUsers,
		secrets:  secrets,
		backend:  backend,
		registry: newRegistry(),
		attempts: defaultAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClusterName derives the deterministic cluster name for an environment.
func ClusterName(envID uint) string {
	return fmt.Sprintf("env-%d", envID)
}

// Create persists a new environment in CREATING status together with the
// requester's ADMIN binding, then starts the provisioning task and returns.
// The returned row may already be stale by the time the caller reads it;
// poll FindByID for live status.
func (s *Service) Create(ctx context.Context, spec CreateSpec, requester *model.User) (*model.Environment, error) {
	if requester == nil || requester.ID == 0 {
		return nil, ErrMissingRequester
	}
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidName)
	}

	if _, err := s.envs.FindByName(ctx, spec.Name); err == nil {
		return nil, ErrNameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	env := &model.Environment{
		Name:        spec.Name,
		Description: spec.Description,
		Status:      model.EnvironmentCreating,
	}
	if err := s.envs.Create(ctx, env); err != nil {
		// The insert races the FindByName check above; the store's
		// uniqueness constraint is the authoritative one.
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrNameTaken
		}
		return nil, fmt.Errorf("failed to persist environment: %w", err)
	}

	binding := &model.EnvironmentUser{
		EnvironmentID: env.ID,
		UserID:        requester.ID,
		Role:          model.RoleAdmin,
	}
	if err := s.envUsers.Create(ctx, binding); err != nil {
		return nil, fmt.Errorf("failed to persist creator binding: %w", err)
	}

	// The task context is detached from the request: provisioning outlives
	// the HTTP call that triggered it.
	taskCtx, cancel := context.WithCancel(context.Background())
	s.registry.add(env.ID, cancel)
	s.wg.Add(1)
	go s.provision(taskCtx, env.ID)

	logging.Info(subsystem, "environment %s (id %d) created, provisioning scheduled", env.Name, env.ID)
	return env, nil
}

// CancelProvision requests cooperative cancellation of the environment's
// live provisioning task. A no-op when the environment is not currently
// provisioning. Callers deciding whether cancellation is meaningful should
// check the environment's status first.
func (s *Service) CancelProvision(envID uint) bool {
	cancelled := s.registry.cancel(envID)
	if cancelled {
		logging.Info(subsystem, "cancellation requested for environment %d", envID)
	} else {
		logging.Debug(subsystem, "cancellation of environment %d ignored: not provisioning", envID)
	}
	return cancelled
}

// Delete tears down the environment's cluster (best-effort), removes its
// stored credential (best-effort) and deletes the row. Deleting an unknown
// id is a no-op.
func (s *Service) Delete(ctx context.Context, envID uint) error {
	env, err := s.envs.FindByID(ctx, envID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	env.Status = model.EnvironmentDeleting
	if err := s.envs.Save(ctx, env); err != nil {
		return fmt.Errorf("failed to persist DELETING state for environment %d: %w", envID, err)
	}

	name := ClusterName(envID)
	if err := s.backend.DeleteCluster(ctx, name); err != nil {
		// The record is removed regardless; the external cluster may need
		// manual cleanup.
		logging.Error(subsystem, err, "failed to delete cluster %s", name)
	}

	if env.KubeconfigRef != "" {
		if ref, perr := secretstore.ParseRef(env.KubeconfigRef); perr == nil {
			if derr := s.secrets.Delete(ref); derr != nil {
				logging.Warn(subsystem, "failed to delete credential for environment %d: %v", envID, derr)
			}
		}
	}

	if err := s.envs.Delete(ctx, envID); err != nil {
		return fmt.Errorf("failed to delete environment %d: %w", envID, err)
	}
	logging.Info(subsystem, "environment %d deleted", envID)
	return nil
}

// FindByID returns the environment or store.ErrNotFound.
func (s *Service) FindByID(ctx context.Context, envID uint) (*model.Environment, error) {
	return s.envs.FindByID(ctx, envID)
}

// FindAll lists all environments.
func (s *Service) FindAll(ctx context.Context) ([]model.Environment, error) {
	return s.envs.FindAll(ctx)
}

// BindingsForUser lists the environment-user bindings of a user.
func (s *Service) BindingsForUser(ctx context.Context, userID uint) ([]model.EnvironmentUser, error) {
	return s.envUsers.FindByUserID(ctx, userID)
}

// Wait blocks until all in-flight provisioning tasks have finished. Used
// for graceful shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}
