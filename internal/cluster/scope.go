package cluster

import (
	"github.com/language-operator/language-operator-dashboard-sub001/pkg/api/v1alpha1"
)

// ScopeOptions controls how resources without a clusterRef are reported.
// Orphans are never returned as members of a cluster.
type ScopeOptions struct {
	// AllowOrphaned skips orphans silently. When false, FilterByCluster still
	// returns the filtered items but also an *OrphanedResourcesError.
	AllowOrphaned bool
	// RequireClusterRef turns any orphan into a *MissingClusterRefError.
	RequireClusterRef bool
}

// FilterByCluster keeps the items whose clusterRef equals clusterName.
// Items naming another cluster are dropped without error.
func FilterByCluster(items []v1alpha1.ClusterScopedObject, clusterName string, opts ScopeOptions) ([]v1alpha1.ClusterScopedObject, error) {
	kept := make([]v1alpha1.ClusterScopedObject, 0, len(items))
	var orphans []string
	for _, it := range items {
		switch ref := it.GetClusterRef(); {
		case ref == "":
			orphans = append(orphans, it.GetName())
		case ref == clusterName:
			kept = append(kept, it)
		}
	}
	if len(orphans) == 0 {
		return kept, nil
	}
	if opts.RequireClusterRef {
		return nil, &MissingClusterRefError{Names: orphans}
	}
	if !opts.AllowOrphaned {
		return kept, &OrphanedResourcesError{Names: orphans}
	}
	return kept, nil
}

// RequireInCluster is the single-resource form of FilterByCluster: anything
// other than an exact clusterRef match is an error. A mismatch or an orphan is
// a *NotInClusterError; an orphan under RequireClusterRef is a
// *MissingClusterRefError.
func RequireInCluster(kind string, obj v1alpha1.ClusterScopedObject, clusterName string, opts ScopeOptions) error {
	ref := obj.GetClusterRef()
	switch {
	case ref == clusterName:
		return nil
	case ref == "" && opts.RequireClusterRef:
		return &MissingClusterRefError{Names: []string{obj.GetName()}}
	default:
		return &NotInClusterError{Kind: kind, Name: obj.GetName(), Cluster: clusterName, ClusterRef: ref}
	}
}

// StampClusterRef prepares obj for a write under clusterName: an empty
// clusterRef is filled in, a different one is rejected. The cluster label is
// kept in sync so label selectors agree with spec.clusterRef.
func StampClusterRef(obj v1alpha1.ClusterScopedObject, clusterName string) error {
	ref := obj.GetClusterRef()
	if ref != "" && ref != clusterName {
		return &ClusterRefConflictError{Name: obj.GetName(), Cluster: clusterName, ClusterRef: ref}
	}
	obj.SetClusterRef(clusterName)
	labels := obj.GetLabels()
	if labels == nil {
		labels = map[string]string{}
	}
	labels[v1alpha1.LabelCluster] = clusterName
	obj.SetLabels(labels)
	return nil
}
