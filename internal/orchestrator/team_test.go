package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dply/internal/model"
	"dply/internal/store"
)

func readyEnvironment(t *testing.T, f *fixture) *model.Environment {
	t.Helper()
	env, err := f.svc.Create(context.Background(), CreateSpec{Name: "dev"}, testRequester)
	require.NoError(t, err)
	f.svc.Wait()
	return f.env(t, env.ID)
}

func TestCreateTeamRequiresReadyEnvironment(t *testing.T) {
	ctx := context.Background()
	backend := &fakeControlPlane{blockCreate: true}
	f := newFixture(t, backend)
	teams := NewTeams(f.store, &fakeNamespaceProvisioner{})

	env, err := f.svc.Create(ctx, CreateSpec{Name: "dev"}, testRequester)
	require.NoError(t, err)

	// Still provisioning: rejected synchronously, no team row created.
	_, err = teams.Create(ctx, env.ID, "payments")
	assert.ErrorIs(t, err, ErrEnvironmentNotReady)

	rows, err := f.store.Teams.FindByEnvironmentID(ctx, env.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	f.svc.CancelProvision(env.ID)
	f.svc.Wait()

	// Cancelled is not READY either.
	_, err = teams.Create(ctx, env.ID, "payments")
	assert.ErrorIs(t, err, ErrEnvironmentNotReady)
}

func TestCreateTeamUnknownEnvironment(t *testing.T) {
	f := newFixture(t, &fakeControlPlane{})
	teams := NewTeams(f.store, &fakeNamespaceProvisioner{})

	_, err := teams.Create(context.Background(), 42, "payments")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateTeamValidatesName(t *testing.T) {
	f := newFixture(t, &fakeControlPlane{})
	teams := NewTeams(f.store, &fakeNamespaceProvisioner{})

	for _, name := range []string{"", "Payments", "pay_ments", "-payments"} {
		_, err := teams.Create(context.Background(), 1, name)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}
}

func TestCreateTeamOnboardsAndMarksReady(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeControlPlane{})
	prov := &fakeNamespaceProvisioner{}
	teams := NewTeams(f.store, prov)

	env := readyEnvironment(t, f)

	team, err := teams.Create(ctx, env.ID, "payments")
	require.NoError(t, err)
	assert.Equal(t, model.TeamCreating, team.Status)
	teams.Wait()

	got, err := teams.FindByID(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TeamReady, got.Status)

	calls := prov.setupCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "payments", calls[0].team)
	// The provisioner received the environment's credential reference; it
	// must resolve to the credential the backend handed out.
	plaintext, err := f.secrets.Load(calls[0].ref)
	require.NoError(t, err)
	assert.Equal(t, "kubeconfig-A", string(plaintext))
}

func TestCreateTeamMarksFailedOnProvisionerError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeControlPlane{})
	teams := NewTeams(f.store, &fakeNamespaceProvisioner{err: errors.New("namespace exists")})

	env := readyEnvironment(t, f)

	team, err := teams.Create(ctx, env.ID, "payments")
	require.NoError(t, err)
	teams.Wait()

	got, err := teams.FindByID(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TeamFailed, got.Status)
}
