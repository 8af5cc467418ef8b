package cluster

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// ClientsetFromKubeconfig builds a typed Kubernetes clientset directly from
// kubeconfig bytes, without touching any kubeconfig files on disk.
func ClientsetFromKubeconfig(kubeconfig []byte) (kubernetes.Interface, error) {
	config, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build REST config from kubeconfig: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes clientset: %w", err)
	}
	return clientset, nil
}

// GetNodeHealth retrieves the number of ready and total nodes in a cluster.
// Assumes clientset is already configured for the correct cluster.
func GetNodeHealth(ctx context.Context, clientset kubernetes.Interface) (NodeHealth, error) {
	nodeList, err := clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return NodeHealth{}, fmt.Errorf("failed to list nodes: %w", err)
	}

	health := NodeHealth{TotalNodes: len(nodeList.Items)}
	for _, node := range nodeList.Items {
		for _, condition := range node.Status.Conditions {
			if condition.Type == corev1.NodeReady && condition.Status == corev1.ConditionTrue {
				health.ReadyNodes++
				break
			}
		}
	}
	return health, nil
}
