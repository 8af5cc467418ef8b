// Package cluster wraps the two ways this control plane talks to
// Kubernetes back ends: driving the external k3d CLI for cluster lifecycle,
// and issuing API calls through client-go against a kubeconfig it was
// handed. The orchestrator consumes both behind the ControlPlane interface.
package cluster

import "context"

// NodeHealth represents basic node status of a cluster.
type NodeHealth struct {
	ReadyNodes int
	TotalNodes int
}

// ControlPlane is the contract the orchestrator provisions through.
type ControlPlane interface {
	// CreateCluster creates a single-node cluster and blocks until it
	// reports ready, subject to the configured timeout.
	CreateCluster(ctx context.Context, name string) error
	// DeleteCluster tears the cluster down. Best-effort from the caller's
	// point of view.
	DeleteCluster(ctx context.Context, name string) error
	// Kubeconfig fetches the cluster's generated kubeconfig YAML.
	Kubeconfig(ctx context.Context, name string) (string, error)
	// NodeHealth builds an API client from the kubeconfig and counts nodes.
	NodeHealth(ctx context.Context, kubeconfig string) (NodeHealth, error)
}
