// Package cluster is the dashboard's view of the Kubernetes API: client
// construction, the LanguageCluster existence gate, and the filter that keeps
// cluster-scoped resources inside the cluster named by a request.
package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/language-operator/language-operator-dashboard-sub001/pkg/api/v1alpha1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	ctrlclient "sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/config"
)

const managedByLabel = "app.kubernetes.io/managed-by"

// NewScheme returns a scheme with the core Kubernetes types and the Language
// Operator API registered.
func NewScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		return nil, err
	}
	if err := v1alpha1.AddToScheme(scheme); err != nil {
		return nil, err
	}
	return scheme, nil
}

// RESTConfig loads the kubeconfig at path, or the controller-runtime default
// chain (in-cluster, KUBECONFIG, ~/.kube/config) when path is empty.
func RESTConfig(path string, timeout time.Duration) (*rest.Config, error) {
	var (
		cfg *rest.Config
		err error
	)
	if path != "" {
		cfg, err = clientcmd.BuildConfigFromFlags("", path)
	} else {
		cfg, err = config.GetConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("load kubernetes config: %w", err)
	}
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	return cfg, nil
}

// NewClient builds the typed Kubernetes client shared by all requests.
func NewClient(path string, timeout time.Duration) (ctrlclient.Client, error) {
	cfg, err := RESTConfig(path, timeout)
	if err != nil {
		return nil, err
	}
	scheme, err := NewScheme()
	if err != nil {
		return nil, err
	}
	cli, err := ctrlclient.New(cfg, ctrlclient.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("build client: %w", err)
	}
	return cli, nil
}

// EnsureNamespace creates the organization namespace if it is missing and
// labels it with the organization. An existing namespace is accepted only when
// it carries the same organization label.
func EnsureNamespace(ctx context.Context, c ctrlclient.Client, name, organizationID string) error {
	ns := &corev1.Namespace{}
	err := c.Get(ctx, ctrlclient.ObjectKey{Name: name}, ns)
	if err == nil {
		return ownedNamespace(ns, organizationID)
	}
	if !apierrors.IsNotFound(err) {
		return err
	}
	ns = &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
			Labels: map[string]string{
				v1alpha1.LabelOrganization: organizationID,
				managedByLabel:             "langop-dashboard",
			},
		},
	}
	err = c.Create(ctx, ns)
	if apierrors.IsAlreadyExists(err) {
		existing := &corev1.Namespace{}
		if err := c.Get(ctx, ctrlclient.ObjectKey{Name: name}, existing); err != nil {
			return err
		}
		return ownedNamespace(existing, organizationID)
	}
	return err
}

func ownedNamespace(ns *corev1.Namespace, organizationID string) error {
	if owner := ns.Labels[v1alpha1.LabelOrganization]; owner != organizationID {
		return &NamespaceConflictError{Namespace: ns.Name, OrganizationID: organizationID, Owner: owner}
	}
	return nil
}
