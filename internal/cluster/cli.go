package cluster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"dply/pkg/logging"
)

const (
	// DefaultCreateTimeout bounds `k3d cluster create --wait`.
	DefaultCreateTimeout = 5 * time.Minute
	// DefaultKubeconfigTimeout bounds `k3d kubeconfig get`.
	DefaultKubeconfigTimeout = 2 * time.Minute
)

// CLI drives the external k3d binary and, for validation, the Kubernetes
// API. Exceeding a timeout surfaces as an ordinary error; the retry policy
// upstream does not treat it specially.
type CLI struct {
	binary            string
	createTimeout     time.Duration
	kubeconfigTimeout time.Duration
}

// CLIOption customises a CLI.
type CLIOption func(*CLI)

// WithBinary overrides the k3d binary name or path.
func WithBinary(binary string) CLIOption {
	return func(c *CLI) { c.binary = binary }
}

// WithTimeouts overrides the create and kubeconfig-fetch timeouts.
func WithTimeouts(create, kubeconfig time.Duration) CLIOption {
	return func(c *CLI) {
		c.createTimeout = create
		c.kubeconfigTimeout = kubeconfig
	}
}

// NewCLI returns a ControlPlane backed by the k3d command-line tool.
func NewCLI(opts ...CLIOption) *CLI {
	c := &CLI{
		binary:            "k3d",
		createTimeout:     DefaultCreateTimeout,
		kubeconfigTimeout: DefaultKubeconfigTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CLI) CreateCluster(ctx context.Context, name string) error {
	logging.Info("cluster", "creating cluster %s", name)
	_, err := c.run(ctx, c.createTimeout, "cluster", "create", name, "--wait")
	return err
}

func (c *CLI) DeleteCluster(ctx context.Context, name string) error {
	logging.Info("cluster", "deleting cluster %s", name)
	_, err := c.run(ctx, c.createTimeout, "cluster", "delete", name)
	return err
}

func (c *CLI) Kubeconfig(ctx context.Context, name string) (string, error) {
	logging.Debug("cluster", "fetching kubeconfig for %s", name)
	return c.run(ctx, c.kubeconfigTimeout, "kubeconfig", "get", name)
}

func (c *CLI) NodeHealth(ctx context.Context, kubeconfig string) (NodeHealth, error) {
	clientset, err := ClientsetFromKubeconfig([]byte(kubeconfig))
	if err != nil {
		return NodeHealth{}, err
	}
	return GetNodeHealth(ctx, clientset)
}

// run executes the binary with the given arguments under a timeout,
// capturing combined output. On failure the captured output is folded into
// the returned error for diagnostics.
func (c *CLI) run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	if runErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("command '%s %s' timed out after %s", c.binary, strings.Join(args, " "), timeout)
		}
		return "", fmt.Errorf("command '%s %s' failed: %w. Output: %s", c.binary, strings.Join(args, " "), runErr, strings.TrimSpace(out.String()))
	}
	return out.String(), nil
}
