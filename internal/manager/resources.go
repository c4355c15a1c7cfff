package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/go-chi/chi/v5"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/cluster"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/lib/httperr"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/logging"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/metrics"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/names"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/tenancy"
	"github.com/language-operator/language-operator-dashboard-sub001/pkg/api/v1alpha1"
	"go.uber.org/zap"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	ctrlclient "sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// ClusterStats summarizes the resources that belong to one cluster.
type ClusterStats struct {
	Cluster  string         `json:"cluster"`
	Phase    string         `json:"phase,omitempty"`
	Counts   map[string]int `json:"counts"`
	Orphaned map[string]int `json:"orphaned"`
}

func kindParam(r *http.Request) (v1alpha1.Kind, error) {
	plural := chi.URLParam(r, "kind")
	k, ok := v1alpha1.KindFor(plural)
	if !ok {
		return v1alpha1.Kind{}, httperr.Newf(httperr.CodeResourceNotFound, "unknown resource kind %q", plural)
	}
	return k, nil
}

func nameParam(r *http.Request) (string, error) {
	name := chi.URLParam(r, "name")
	if err := names.Validate(name); err != nil {
		return "", err
	}
	return name, nil
}

func parsePage(r *http.Request) (httperr.Meta, error) {
	meta := httperr.Meta{Page: 1, Limit: defaultPageLimit}
	var verrs httperr.ValidationErrors
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			verrs.Add("page", "must be a positive integer")
		} else {
			meta.Page = n
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageLimit {
			verrs.Add("limit", fmt.Sprintf("must be between 1 and %d", maxPageLimit))
		} else {
			meta.Limit = n
		}
	}
	return meta, verrs.Err()
}

// loadResource reads one resource of kind from the organization namespace.
// A missing object reads the same as one belonging to another cluster.
func (s *Server) loadResource(ctx context.Context, kind v1alpha1.Kind, namespace, name, clusterName string) (v1alpha1.ClusterScopedObject, error) {
	obj := kind.New()
	err := s.kube.Get(ctx, ctrlclient.ObjectKey{Namespace: namespace, Name: name}, obj)
	if apierrors.IsNotFound(err) {
		return nil, &cluster.NotInClusterError{Kind: kind.Plural, Name: name, Cluster: clusterName}
	}
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (s *Server) listResources(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, err := kindParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	meta, err := parsePage(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	scope, _ := tenancy.ScopeFrom(ctx)
	c := clusterFrom(ctx)

	list := kind.NewList()
	if err := s.kube.List(ctx, list, ctrlclient.InNamespace(scope.Namespace)); err != nil {
		s.fail(w, r, err)
		return
	}
	items, err := cluster.FilterByCluster(list.ScopedItems(), c.Name, cluster.ScopeOptions{AllowOrphaned: true})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sort.Slice(items, func(i, j int) bool { return items[i].GetName() < items[j].GetName() })

	meta.Total = len(items)
	start, end := pageBounds(meta)
	httperr.Page(w, items[start:end], meta)
}

// pageBounds returns the slice bounds of meta's page. Pages past the end are
// empty; the multiplication is only done when it cannot overflow.
func pageBounds(meta httperr.Meta) (int, int) {
	if meta.Page-1 > meta.Total/meta.Limit {
		return meta.Total, meta.Total
	}
	start := min((meta.Page-1)*meta.Limit, meta.Total)
	return start, min(start+meta.Limit, meta.Total)
}

func (s *Server) createResource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, err := kindParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	scope, _ := tenancy.ScopeFrom(ctx)
	c := clusterFrom(ctx)

	obj := kind.New()
	if err := decodeJSON(r, obj); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := names.Validate(obj.GetName()); err != nil {
		s.fail(w, r, err)
		return
	}
	if ns := obj.GetNamespace(); ns != "" && ns != scope.Namespace {
		s.fail(w, r, httperr.New(httperr.CodeValidation, "metadata.namespace is managed by the organization").
			WithDetails([]httperr.FieldError{{Field: "metadata.namespace", Message: "must be empty or " + scope.Namespace}}))
		return
	}
	obj.SetNamespace(scope.Namespace)
	obj.SetResourceVersion("")
	if err := cluster.StampClusterRef(obj, c.Name); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.kube.Create(ctx, obj); err != nil {
		s.fail(w, r, err)
		return
	}
	logging.FromContext(ctx).Info("resource_created", zap.String("kind", kind.Kind), zap.String("name", obj.GetName()))
	httperr.OK(w, http.StatusCreated, obj, kind.Kind+" created")
}

func (s *Server) getResource(w http.ResponseWriter, r *http.Request) {
	obj, _, ok := s.resourceInCluster(w, r, cluster.ScopeOptions{})
	if !ok {
		return
	}
	httperr.OK(w, http.StatusOK, obj, "")
}

// patchResource applies an RFC 7386 merge patch. The patch may not move the
// resource to another cluster or rename it.
func (s *Server) patchResource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	existing, kind, ok := s.resourceInCluster(w, r, cluster.ScopeOptions{RequireClusterRef: true})
	if !ok {
		return
	}
	c := clusterFrom(ctx)

	defer r.Body.Close()
	patch, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.fail(w, r, badBody(err))
		return
	}
	original, err := json.Marshal(existing)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	merged, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		s.fail(w, r, badBody(err))
		return
	}
	updated := kind.New()
	if err := json.Unmarshal(merged, updated); err != nil {
		s.fail(w, r, badBody(err))
		return
	}
	if updated.GetName() != existing.GetName() || updated.GetNamespace() != existing.GetNamespace() {
		s.fail(w, r, httperr.New(httperr.CodeResourceConflict, "metadata.name and metadata.namespace cannot be changed"))
		return
	}
	if updated.GetClusterRef() != c.Name {
		s.fail(w, r, &cluster.ClusterRefConflictError{Name: updated.GetName(), Cluster: c.Name, ClusterRef: updated.GetClusterRef()})
		return
	}
	if err := cluster.StampClusterRef(updated, c.Name); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.kube.Update(ctx, updated); err != nil {
		s.fail(w, r, err)
		return
	}
	logging.FromContext(ctx).Info("resource_updated", zap.String("kind", kind.Kind), zap.String("name", updated.GetName()))
	httperr.OK(w, http.StatusOK, updated, kind.Kind+" updated")
}

func (s *Server) deleteResource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	obj, kind, ok := s.resourceInCluster(w, r, cluster.ScopeOptions{})
	if !ok {
		return
	}
	if err := s.kube.Delete(ctx, obj, uidPrecondition(obj)...); err != nil {
		s.fail(w, r, err)
		return
	}
	logging.FromContext(ctx).Info("resource_deleted", zap.String("kind", kind.Kind), zap.String("name", obj.GetName()))
	httperr.OK(w, http.StatusOK, map[string]string{"name": obj.GetName()}, kind.Kind+" deleted")
}

// resourceInCluster loads the {kind}/{name} resource and checks it belongs to
// the cluster in the path, writing the error response itself when not.
func (s *Server) resourceInCluster(w http.ResponseWriter, r *http.Request, opts cluster.ScopeOptions) (v1alpha1.ClusterScopedObject, v1alpha1.Kind, bool) {
	ctx := r.Context()
	kind, err := kindParam(r)
	if err != nil {
		s.fail(w, r, err)
		return nil, kind, false
	}
	name, err := nameParam(r)
	if err != nil {
		s.fail(w, r, err)
		return nil, kind, false
	}
	scope, _ := tenancy.ScopeFrom(ctx)
	c := clusterFrom(ctx)
	obj, err := s.loadResource(ctx, kind, scope.Namespace, name, c.Name)
	if err != nil {
		s.fail(w, r, err)
		return nil, kind, false
	}
	if err := cluster.RequireInCluster(kind.Plural, obj, c.Name, opts); err != nil {
		s.fail(w, r, err)
		return nil, kind, false
	}
	return obj, kind, true
}

// clusterStats counts each kind in the cluster. Orphans in the namespace are
// reported separately and logged, never counted toward the cluster.
func (s *Server) clusterStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, _ := tenancy.ScopeFrom(ctx)
	c := clusterFrom(ctx)
	out := ClusterStats{
		Cluster:  c.Name,
		Phase:    string(c.Phase()),
		Counts:   map[string]int{},
		Orphaned: map[string]int{},
	}
	for _, kind := range v1alpha1.Kinds() {
		list := kind.NewList()
		if err := s.kube.List(ctx, list, ctrlclient.InNamespace(scope.Namespace)); err != nil {
			s.fail(w, r, err)
			return
		}
		items, err := cluster.FilterByCluster(list.ScopedItems(), c.Name, cluster.ScopeOptions{})
		var orphans *cluster.OrphanedResourcesError
		switch {
		case errors.As(err, &orphans):
			out.Orphaned[kind.Plural] = len(orphans.Names)
			metrics.OrphanedResourcesTotal.WithLabelValues(kind.Plural).Add(float64(len(orphans.Names)))
			logging.FromContext(ctx).Warn("orphaned_resources",
				zap.String("kind", kind.Kind),
				zap.Strings("names", orphans.Names),
			)
		case err != nil:
			s.fail(w, r, err)
			return
		}
		out.Counts[kind.Plural] = len(items)
	}
	httperr.OK(w, http.StatusOK, out, "")
}
