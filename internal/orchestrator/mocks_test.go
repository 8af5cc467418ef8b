package orchestrator

import (
	"context"
	"sync"

	"dply/internal/cluster"
	"dply/internal/secretstore"
)

// fakeControlPlane is a scriptable cluster backend. createErrs is consumed
// one entry per CreateCluster call; a nil entry means success. When
// blockCreate is set, CreateCluster parks until the call's context is
// cancelled, emulating a slow external process.
type fakeControlPlane struct {
	mu          sync.Mutex
	createErrs  []error
	createCalls int
	blockCreate bool
	kubeconfig  string
	health      cluster.NodeHealth
	healthErr   error
	zeroNodes   bool
	deleted     []string
	deleteErr   error
	// onDelete runs inside DeleteCluster, letting tests observe state
	// while the teardown is in flight.
	onDelete func(name string)
}

func (f *fakeControlPlane) CreateCluster(ctx context.Context, name string) error {
	f.mu.Lock()
	call := f.createCalls
	f.createCalls++
	block := f.blockCreate
	var err error
	if call < len(f.createErrs) {
		err = f.createErrs[call]
	}
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (f *fakeControlPlane) DeleteCluster(ctx context.Context, name string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, name)
	hook := f.onDelete
	err := f.deleteErr
	f.mu.Unlock()
	if hook != nil {
		hook(name)
	}
	return err
}

func (f *fakeControlPlane) Kubeconfig(ctx context.Context, name string) (string, error) {
	return f.kubeconfig, nil
}

func (f *fakeControlPlane) NodeHealth(ctx context.Context, kubeconfig string) (cluster.NodeHealth, error) {
	return f.health, f.healthErr
}

func (f *fakeControlPlane) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls
}

func (f *fakeControlPlane) deletedClusters() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// fakeNamespaceProvisioner records Setup invocations.
type fakeNamespaceProvisioner struct {
	mu    sync.Mutex
	err   error
	calls []setupCall
}

type setupCall struct {
	ref  secretstore.Ref
	team string
}

func (f *fakeNamespaceProvisioner) Setup(ctx context.Context, ref secretstore.Ref, team string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, setupCall{ref: ref, team: team})
	return f.err
}

func (f *fakeNamespaceProvisioner) setupCalls() []setupCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]setupCall(nil), f.calls...)
}
