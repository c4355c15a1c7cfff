package cluster

import (
	"fmt"
	"strings"

	"github.com/language-operator/language-operator-dashboard-sub001/internal/lib/httperr"
	"github.com/language-operator/language-operator-dashboard-sub001/pkg/api/v1alpha1"
)

// NotFoundError reports that no LanguageCluster with the name exists in the namespace.
type NotFoundError struct {
	Namespace string
	Name      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cluster %q not found in namespace %q", e.Name, e.Namespace)
}
func (e *NotFoundError) ErrorCode() httperr.Code { return httperr.CodeClusterNotFound }
func (e *NotFoundError) PublicMessage() string   { return fmt.Sprintf("cluster %q not found", e.Name) }

// AccessDeniedError reports a cluster that exists but may not be used.
type AccessDeniedError struct {
	Name   string
	Phase  v1alpha1.ClusterPhase
	Reason string
}

const (
	ReasonNotAccessible = "cluster is not accessible"
	ReasonDifferentOrg  = "different organization"
)

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("cluster %q: %s (phase %q)", e.Name, e.Reason, e.Phase)
}
func (e *AccessDeniedError) ErrorCode() httperr.Code { return httperr.CodeClusterAccessDenied }
func (e *AccessDeniedError) PublicMessage() string {
	return fmt.Sprintf("access to cluster %q denied: %s", e.Name, e.Reason)
}
func (e *AccessDeniedError) ErrorContext() map[string]string {
	ctx := map[string]string{"cluster": e.Name, "reason": e.Reason}
	if e.Phase != "" {
		ctx["phase"] = string(e.Phase)
	}
	return ctx
}

// NotInClusterError reports a resource that exists in the namespace but is not
// part of the requested cluster. Clients see it as a plain not-found.
type NotInClusterError struct {
	Kind       string
	Name       string
	Cluster    string
	ClusterRef string
}

func (e *NotInClusterError) Error() string {
	if e.ClusterRef == "" {
		return fmt.Sprintf("%s %q has no clusterRef and is not part of cluster %q", e.Kind, e.Name, e.Cluster)
	}
	return fmt.Sprintf("%s %q belongs to cluster %q, not %q", e.Kind, e.Name, e.ClusterRef, e.Cluster)
}
func (e *NotInClusterError) ErrorCode() httperr.Code { return httperr.CodeResourceNotFound }
func (e *NotInClusterError) PublicMessage() string {
	return fmt.Sprintf("%s %q not found in cluster %q", e.Kind, e.Name, e.Cluster)
}

// MissingClusterRefError is raised when a caller requires every resource to
// name its cluster and some do not.
type MissingClusterRefError struct {
	Names []string
}

func (e *MissingClusterRefError) Error() string {
	return "resources without clusterRef: " + strings.Join(e.Names, ", ")
}
func (e *MissingClusterRefError) ErrorCode() httperr.Code { return httperr.CodeOrphanedResource }
func (e *MissingClusterRefError) PublicMessage() string {
	return "resource is not associated with any cluster"
}

// OrphanedResourcesError lists resources skipped because they carry no
// clusterRef. It is informational: the filtered result is still valid.
type OrphanedResourcesError struct {
	Names []string
}

func (e *OrphanedResourcesError) Error() string {
	return fmt.Sprintf("%d orphaned resources skipped: %s", len(e.Names), strings.Join(e.Names, ", "))
}
func (e *OrphanedResourcesError) ErrorCode() httperr.Code { return httperr.CodeOrphanedResource }
func (e *OrphanedResourcesError) PublicMessage() string {
	return "orphaned resources were found"
}

// ClusterRefConflictError reports a write whose clusterRef disagrees with the
// cluster in the request path.
type ClusterRefConflictError struct {
	Name       string
	Cluster    string
	ClusterRef string
}

func (e *ClusterRefConflictError) Error() string {
	return fmt.Sprintf("resource %q declares clusterRef %q but the request targets cluster %q", e.Name, e.ClusterRef, e.Cluster)
}
func (e *ClusterRefConflictError) ErrorCode() httperr.Code { return httperr.CodeResourceConflict }
func (e *ClusterRefConflictError) PublicMessage() string {
	return fmt.Sprintf("spec.clusterRef must be %q", e.Cluster)
}

// NamespaceConflictError reports a namespace that already belongs to another
// organization, or to nobody the dashboard manages.
type NamespaceConflictError struct {
	Namespace      string
	OrganizationID string
	Owner          string
}

func (e *NamespaceConflictError) Error() string {
	return fmt.Sprintf("namespace %q is labelled for organization %q, not %q", e.Namespace, e.Owner, e.OrganizationID)
}
func (e *NamespaceConflictError) ErrorCode() httperr.Code { return httperr.CodeResourceConflict }
func (e *NamespaceConflictError) PublicMessage() string {
	return fmt.Sprintf("namespace %q is already in use", e.Namespace)
}
