package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/buildkite/roko"

	"dply/internal/model"
	"dply/pkg/logging"
)

const (
	defaultAttempts = 3
	initialBackoff  = 1 * time.Second
)

// provision is the supervised background task driving one environment from
// CREATING to a terminal state. Failures never escape: every outcome is
// converted into a persisted status. The registry entry is removed on every
// path, success, failure and cancellation alike.
func (s *Service) provision(ctx context.Context, envID uint) {
	defer s.wg.Done()
	defer s.registry.remove(envID)

	name := ClusterName(envID)
	if !s.markProvisioning(envID, name) {
		return
	}

	do := func(r *roko.Retrier) error {
		// Cancellation check at the start of each attempt. Break stops the
		// retry loop instead of burning the remaining budget.
		if err := ctx.Err(); err != nil {
			r.Break()
			return err
		}
		logging.Info(subsystem, "provisioning attempt %d/%d for cluster %s", r.AttemptCount()+1, s.attempts, name)
		return s.attempt(ctx, envID, name)
	}

	var err error
	if s.sleep != nil {
		err = roko.NewRetrier(
			roko.WithMaxAttempts(s.attempts),
			roko.WithStrategy(roko.ExponentialSubsecond(initialBackoff)),
			roko.WithJitter(),
			roko.WithSleepFunc(s.sleep),
		).DoWithContext(ctx, do)
	} else {
		err = roko.NewRetrier(
			roko.WithMaxAttempts(s.attempts),
			roko.WithStrategy(roko.ExponentialSubsecond(initialBackoff)),
			roko.WithJitter(),
		).DoWithContext(ctx, do)
	}

	switch {
	case err == nil:
		logging.Info(subsystem, "provisioning completed for cluster %s", name)
	case ctx.Err() != nil:
		logging.Warn(subsystem, "provisioning cancelled for cluster %s", name)
		s.markTerminal(envID, model.EnvironmentCancelled)
	default:
		logging.Error(subsystem, err, "provisioning failed for cluster %s", name)
		s.markTerminal(envID, model.EnvironmentFailed)
	}
}

// attempt is one full provisioning pass: create the cluster, fetch its
// credential, validate node readiness, store the credential and persist the
// READY state. Any error feeds back into the retry loop.
func (s *Service) attempt(ctx context.Context, envID uint, name string) error {
	if err := s.backend.CreateCluster(ctx, name); err != nil {
		return fmt.Errorf("cluster creation failed: %w", err)
	}

	kubeconfig, err := s.backend.Kubeconfig(ctx, name)
	if err != nil {
		return fmt.Errorf("credential retrieval failed: %w", err)
	}

	health, err := s.backend.NodeHealth(ctx, kubeconfig)
	if err != nil {
		return fmt.Errorf("readiness validation failed: %w", err)
	}
	if health.TotalNodes < 1 {
		return fmt.Errorf("cluster %s reports no nodes", name)
	}

	// Cancellation after the external calls returned: stop before the
	// credential is stored so a cancelled environment never holds one.
	if err := ctx.Err(); err != nil {
		return err
	}

	ref, err := s.secrets.Store(strconv.FormatUint(uint64(envID), 10), []byte(kubeconfig))
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	// Persistence uses a fresh context: a cancelled task context must not
	// block recording the outcome.
	env, err := s.envs.FindByID(context.Background(), envID)
	if err != nil {
		return fmt.Errorf("failed to reload environment %d: %w", envID, err)
	}
	env.KubeconfigRef = ref.String()
	env.Status = model.EnvironmentReady
	if err := s.envs.Save(context.Background(), env); err != nil {
		return fmt.Errorf("failed to persist READY state: %w", err)
	}
	return nil
}

// markProvisioning records the transition to PROVISIONING. Returns
// false when the environment row has vanished (deleted while scheduling).
func (s *Service) markProvisioning(envID uint, name string) bool {
	env, err := s.envs.FindByID(context.Background(), envID)
	if err != nil {
		logging.Error(subsystem, err, "cannot start provisioning for cluster %s", name)
		return false
	}
	env.Status = model.EnvironmentProvisioning
	if err := s.envs.Save(context.Background(), env); err != nil {
		logging.Error(subsystem, err, "failed to persist PROVISIONING state for cluster %s", name)
		return false
	}
	logging.Info(subsystem, "provisioning started for cluster %s", name)
	return true
}

// markTerminal persists a terminal failure/cancellation state, ensuring no
// credential reference survives on those paths.
func (s *Service) markTerminal(envID uint, status model.EnvironmentStatus) {
	env, err := s.envs.FindByID(context.Background(), envID)
	if err != nil {
		logging.Error(subsystem, err, "failed to reload environment %d for terminal state %s", envID, status)
		return
	}
	env.Status = status
	env.KubeconfigRef = ""
	if err := s.envs.Save(context.Background(), env); err != nil {
		logging.Error(subsystem, err, "failed to persist terminal state %s for environment %d", status, envID)
	}
}
