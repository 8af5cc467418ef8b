package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"k8s.io/apimachinery/pkg/util/validation"

	"dply/internal/model"
	"dply/internal/secretstore"
	"dply/internal/store"
	"dply/pkg/logging"
)

// NamespaceProvisioner sets up a team's namespace and RBAC inside the
// cluster addressed by the credential reference.
type NamespaceProvisioner interface {
	Setup(ctx context.Context, ref secretstore.Ref, team string) error
}

// Teams is the team onboarding orchestrator. Team rows are mutated
// exclusively by this service and its onboarding tasks.
type Teams struct {
	teams store.Teams
	envs  store.Environments
	prov  NamespaceProvisioner
	wg    sync.WaitGroup
}

// NewTeams creates the team orchestrator.
func NewTeams(st *store.Store, prov NamespaceProvisioner) *Teams {
	return &Teams{
		teams: st.Teams,
		envs:  st.Environments,
		prov:  prov,
	}
}

// Create persists a new team in CREATING status and starts the namespace
// and RBAC setup in the background. The environment must be READY: anything
// else is rejected synchronously and no row is created. Onboarding is
// fire-and-forget; there is no cancellation contract for teams.
func (t *Teams) Create(ctx context.Context, envID uint, name string) (*model.Team, error) {
	// Team names become Kubernetes namespace names, so they must be valid
	// DNS labels.
	if errs := validation.IsDNS1123Label(name); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidName, errs[0])
	}

	env, err := t.envs.FindByID(ctx, envID)
	if err != nil {
		return nil, err
	}
	if env.Status != model.EnvironmentReady {
		return nil, fmt.Errorf("%w: environment %d is %s", ErrEnvironmentNotReady, envID, env.Status)
	}

	ref, err := secretstore.ParseRef(env.KubeconfigRef)
	if err != nil {
		return nil, fmt.Errorf("environment %d has no usable credential reference: %w", envID, err)
	}

	team := &model.Team{
		Name:          name,
		EnvironmentID: envID,
		Status:        model.TeamCreating,
	}
	if err := t.teams.Create(ctx, team); err != nil {
		return nil, fmt.Errorf("failed to persist team: %w", err)
	}

	t.wg.Add(1)
	go t.onboard(team.ID, ref, name)

	logging.Info(subsystem, "team %s (id %d) created in environment %d, onboarding scheduled", name, team.ID, envID)
	return team, nil
}

// onboard drives the namespace/RBAC setup and persists the outcome. Like
// environment provisioning, failures are caught at the task boundary and
// recorded as a terminal status.
func (t *Teams) onboard(teamID uint, ref secretstore.Ref, name string) {
	defer t.wg.Done()

	status := model.TeamReady
	if err := t.prov.Setup(context.Background(), ref, name); err != nil {
		logging.Error(subsystem, err, "onboarding failed for team %s", name)
		status = model.TeamFailed
	}

	team, err := t.teams.FindByID(context.Background(), teamID)
	if err != nil {
		logging.Error(subsystem, err, "failed to reload team %d", teamID)
		return
	}
	team.Status = status
	if err := t.teams.Save(context.Background(), team); err != nil {
		logging.Error(subsystem, err, "failed to persist %s state for team %d", status, teamID)
		return
	}
	if status == model.TeamReady {
		logging.Info(subsystem, "onboarding completed for team %s", name)
	}
}

// FindByID returns the team or store.ErrNotFound.
func (t *Teams) FindByID(ctx context.Context, teamID uint) (*model.Team, error) {
	return t.teams.FindByID(ctx, teamID)
}

// FindByEnvironment lists an environment's teams.
func (t *Teams) FindByEnvironment(ctx context.Context, envID uint) ([]model.Team, error) {
	return t.teams.FindByEnvironmentID(ctx, envID)
}

// Wait blocks until all in-flight onboarding tasks have finished.
func (t *Teams) Wait() {
	t.wg.Wait()
}
