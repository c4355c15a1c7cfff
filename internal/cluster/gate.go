package cluster

import (
	"context"
	"time"

	"github.com/language-operator/language-operator-dashboard-sub001/internal/metrics"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/names"
	"github.com/language-operator/language-operator-dashboard-sub001/pkg/api/v1alpha1"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	ctrlclient "sigs.k8s.io/controller-runtime/pkg/client"
)

var tracer = otel.Tracer("langop-dashboard/cluster")

// GateOptions controls how strict the existence gate is.
type GateOptions struct {
	// ValidateAccess rejects clusters whose phase is not accessible.
	ValidateAccess bool
}

// Gate confirms a LanguageCluster exists before any cluster-scoped work runs.
type Gate struct {
	Client ctrlclient.Reader
}

// IsAccessible reports whether operations may target the cluster. Clusters the
// operator has not reported on yet are treated as accessible.
func IsAccessible(c *v1alpha1.LanguageCluster) bool {
	switch c.Phase() {
	case "", v1alpha1.ClusterReady, v1alpha1.ClusterPending, v1alpha1.ClusterScaling:
		return true
	}
	return false
}

// Ensure validates name, reads the cluster once, and applies opts. Errors are
// *names.InvalidNameError, *NotFoundError, *AccessDeniedError, or the raw
// Kubernetes error for anything else.
func (g *Gate) Ensure(ctx context.Context, namespace, name string, opts GateOptions) (*v1alpha1.LanguageCluster, error) {
	if err := names.ValidateField("cluster", name); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "cluster.gate")
	defer span.End()
	span.SetAttributes(
		attribute.String("k8s.namespace", namespace),
		attribute.String("langop.cluster", name),
		attribute.Bool("langop.validate_access", opts.ValidateAccess),
	)

	start := time.Now()
	c := &v1alpha1.LanguageCluster{}
	err := g.Client.Get(ctx, ctrlclient.ObjectKey{Namespace: namespace, Name: name}, c)
	metrics.ClusterGateSeconds.Observe(time.Since(start).Seconds())
	if apierrors.IsNotFound(err) {
		span.SetStatus(codes.Error, "not found")
		return nil, &NotFoundError{Namespace: namespace, Name: name}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("langop.cluster.phase", string(c.Phase())))
	if opts.ValidateAccess && !IsAccessible(c) {
		span.SetStatus(codes.Error, ReasonNotAccessible)
		return nil, &AccessDeniedError{Name: name, Phase: c.Phase(), Reason: ReasonNotAccessible}
	}
	return c, nil
}

// EnsureOwnedBy is Ensure plus a check that the cluster carries the
// organization label for organizationID. Clusters without the label are denied.
func (g *Gate) EnsureOwnedBy(ctx context.Context, namespace, name, organizationID string, opts GateOptions) (*v1alpha1.LanguageCluster, error) {
	c, err := g.Ensure(ctx, namespace, name, opts)
	if err != nil {
		return nil, err
	}
	if !OwnedBy(c, organizationID) {
		return nil, &AccessDeniedError{Name: name, Phase: c.Phase(), Reason: ReasonDifferentOrg}
	}
	return c, nil
}

// OwnedBy reports whether the cluster is labelled with organizationID.
func OwnedBy(c *v1alpha1.LanguageCluster, organizationID string) bool {
	return organizationID != "" && c.GetLabels()[v1alpha1.LabelOrganization] == organizationID
}
