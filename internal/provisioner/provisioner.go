// Package provisioner creates the namespace-level isolation for a team
// inside an environment's cluster: a namespace, a service account, a role
// and a role binding. The steps run sequentially without rollback; a
// failure aborts the call and surfaces to the caller.
package provisioner

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"dply/internal/cluster"
	"dply/internal/secretstore"
	"dply/pkg/logging"
)

const (
	// ServiceAccountName is the principal created for each team.
	ServiceAccountName = "team-sa"
	// RoleName is the namespace-scoped role granted to the team.
	RoleName = "team-admin"
	// RoleBindingName attaches the service account to the role.
	RoleBindingName = "team-admin-binding"
)

// DefaultRules grants full access to every resource in the namespace.
// Narrow it via Options.Rules.
var DefaultRules = []rbacv1.PolicyRule{
	{
		APIGroups: []string{"*"},
		Resources: []string{"*"},
		Verbs:     []string{"*"},
	},
}

// Options parameterize the objects the provisioner creates.
type Options struct {
	// Rules are the policy rules granted to the team's role. Nil means
	// DefaultRules.
	Rules []rbacv1.PolicyRule
}

// Provisioner sets up namespaces and RBAC in environment clusters. The
// clientset factory is injectable for tests.
type Provisioner struct {
	secrets      secretstore.Store
	rules        []rbacv1.PolicyRule
	newClientset func(kubeconfig []byte) (kubernetes.Interface, error)
}

// New returns a Provisioner that loads environment credentials from the
// given secret store.
func New(secrets secretstore.Store, opts Options) *Provisioner {
	rules := opts.Rules
	if rules == nil {
		rules = DefaultRules
	}
	return &Provisioner{
		secrets:      secrets,
		rules:        rules,
		newClientset: cluster.ClientsetFromKubeconfig,
	}
}

// Setup creates the team's namespace, service account, role and role
// binding inside the cluster addressed by ref. Creation is at-least-once
// and non-transactional: a partial failure leaves earlier objects in place.
func (p *Provisioner) Setup(ctx context.Context, ref secretstore.Ref, team string) error {
	kubeconfig, err := p.secrets.Load(ref)
	if err != nil {
		return fmt.Errorf("failed to load environment credential: %w", err)
	}
	clientset, err := p.newClientset(kubeconfig)
	if err != nil {
		return err
	}

	if err := p.createNamespace(ctx, clientset, team); err != nil {
		return err
	}
	if err := p.createServiceAccount(ctx, clientset, team); err != nil {
		return err
	}
	if err := p.createRole(ctx, clientset, team); err != nil {
		return err
	}
	if err := p.createRoleBinding(ctx, clientset, team); err != nil {
		return err
	}

	logging.Info("provisioner", "namespace and RBAC configured for team %s", team)
	return nil
}

func (p *Provisioner) createNamespace(ctx context.Context, clientset kubernetes.Interface, team string) error {
	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: team},
	}
	if _, err := clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("failed to create namespace %s: %w", team, err)
	}
	return nil
}

func (p *Provisioner) createServiceAccount(ctx context.Context, clientset kubernetes.Interface, team string) error {
	sa := &corev1.ServiceAccount{
		ObjectMeta: metav1.ObjectMeta{Name: ServiceAccountName, Namespace: team},
	}
	if _, err := clientset.CoreV1().ServiceAccounts(team).Create(ctx, sa, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("failed to create service account in %s: %w", team, err)
	}
	return nil
}

func (p *Provisioner) createRole(ctx context.Context, clientset kubernetes.Interface, team string) error {
	role := &rbacv1.Role{
		ObjectMeta: metav1.ObjectMeta{Name: RoleName, Namespace: team},
		Rules:      p.rules,
	}
	if _, err := clientset.RbacV1().Roles(team).Create(ctx, role, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("failed to create role in %s: %w", team, err)
	}
	return nil
}

func (p *Provisioner) createRoleBinding(ctx context.Context, clientset kubernetes.Interface, team string) error {
	binding := &rbacv1.RoleBinding{
		ObjectMeta: metav1.ObjectMeta{Name: RoleBindingName, Namespace: team},
		RoleRef: rbacv1.RoleRef{
			APIGroup: rbacv1.GroupName,
			Kind:     "Role",
			Name:     RoleName,
		},
		Subjects: []rbacv1.Subject{
			{
				Kind:      rbacv1.ServiceAccountKind,
				Name:      ServiceAccountName,
				Namespace: team,
			},
		},
	}
	if _, err := clientset.RbacV1().RoleBindings(team).Create(ctx, binding, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("failed to create role binding in %s: %w", team, err)
	}
	return nil
}
