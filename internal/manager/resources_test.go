package manager

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/language-operator/language-operator-dashboard-sub001/internal/lib/httperr"
	"github.com/language-operator/language-operator-dashboard-sub001/pkg/api/v1alpha1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
	ctrlclient "sigs.k8s.io/controller-runtime/pkg/client"
)

func acmeFixtures() []ctrlclient.Object {
	return []ctrlclient.Object{
		labelledCluster("prod", acmeNS, acmeID, v1alpha1.ClusterReady),
		labelledCluster("staging", acmeNS, acmeID, v1alpha1.ClusterReady),
		labelledCluster("broken", acmeNS, acmeID, v1alpha1.ClusterFailed),
		langModel("gpt", acmeNS, "prod"),
		langModel("claude", acmeNS, "staging"),
		langModel("llama", acmeNS, ""),
		labelledCluster("prod", rivalNS, rivalID, v1alpha1.ClusterReady),
		langModel("secret-model", rivalNS, "prod"),
	}
}

func getModel(t *testing.T, h *harness, name string) *v1alpha1.LanguageModel {
	t.Helper()
	m := &v1alpha1.LanguageModel{}
	if err := h.kube.Get(context.Background(), ctrlclient.ObjectKey{Namespace: acmeNS, Name: name}, m); err != nil {
		t.Fatalf("get %s: %v", name, err)
	}
	return m
}

func TestListReturnsOnlyTheRequestedCluster(t *testing.T) {
	h := newHarness(t, acmeFixtures())
	w := h.do(http.MethodGet, "/api/clusters/prod/models", "u-viewer", acmeID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}
	var models []v1alpha1.LanguageModel
	meta := decodeData(t, w, &models)
	if len(models) != 1 || models[0].Name != "gpt" {
		t.Fatalf("models = %+v", models)
	}
	if meta.Total != 1 || meta.Page != 1 || meta.Limit != defaultPageLimit {
		t.Fatalf("meta = %+v", meta)
	}
	for _, m := range models {
		if m.Spec.ClusterRef != "prod" || m.Namespace != acmeNS {
			t.Fatalf("leaked %s/%s ref=%q", m.Namespace, m.Name, m.Spec.ClusterRef)
		}
	}
}

func TestListPagination(t *testing.T) {
	objs := acmeFixtures()
	objs = append(objs, langModel("ada", acmeNS, "prod"), langModel("zeta", acmeNS, "prod"))
	h := newHarness(t, objs)

	w := h.do(http.MethodGet, "/api/clusters/prod/models?page=2&limit=2", "u-viewer", acmeID, nil)
	var models []v1alpha1.LanguageModel
	meta := decodeData(t, w, &models)
	if meta.Total != 3 || len(models) != 1 || models[0].Name != "zeta" {
		t.Fatalf("page 2 = %+v meta=%+v", models, meta)
	}
	w = h.do(http.MethodGet, "/api/clusters/prod/models?page=9", "u-viewer", acmeID, nil)
	models = nil
	decodeData(t, w, &models)
	if len(models) != 0 {
		t.Fatalf("past the end = %+v", models)
	}
	w = h.do(http.MethodGet, "/api/clusters/prod/models?page=4611686018427387905&limit=2", "u-viewer", acmeID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("huge page: %d %s", w.Code, w.Body.String())
	}
	models = nil
	if meta := decodeData(t, w, &models); len(models) != 0 || meta.Total != 3 {
		t.Fatalf("huge page = %+v meta=%+v", models, meta)
	}
	w = h.do(http.MethodGet, "/api/clusters/prod/models?limit=500", "u-viewer", acmeID, nil)
	b := expectError(t, w, http.StatusBadRequest, httperr.CodeValidation)
	if b.Details == nil {
		t.Fatalf("expected field details")
	}
}

func TestPageBounds(t *testing.T) {
	const maxInt = int(^uint(0) >> 1)
	cases := []struct {
		meta       httperr.Meta
		start, end int
	}{
		{httperr.Meta{Page: 1, Limit: 20, Total: 3}, 0, 3},
		{httperr.Meta{Page: 2, Limit: 2, Total: 3}, 2, 3},
		{httperr.Meta{Page: 3, Limit: 2, Total: 4}, 4, 4},
		{httperr.Meta{Page: 9, Limit: 20, Total: 0}, 0, 0},
		{httperr.Meta{Page: maxInt, Limit: 100, Total: 7}, 7, 7},
		{httperr.Meta{Page: 1 << 62, Limit: 2, Total: 3}, 3, 3},
	}
	for _, tc := range cases {
		start, end := pageBounds(tc.meta)
		if start != tc.start || end != tc.end {
			t.Fatalf("pageBounds(%+v) = %d,%d want %d,%d", tc.meta, start, end, tc.start, tc.end)
		}
	}
}

func TestCrossClusterAccessLooksLikeNotFound(t *testing.T) {
	h := newHarness(t, acmeFixtures())
	get := h.do(http.MethodGet, "/api/clusters/prod/models/claude", "u-owner", acmeID, nil)
	absent := h.do(http.MethodGet, "/api/clusters/prod/models/nothing", "u-owner", acmeID, nil)
	a := expectError(t, get, http.StatusNotFound, httperr.CodeResourceNotFound)
	b := expectError(t, absent, http.StatusNotFound, httperr.CodeResourceNotFound)
	if a.Context != nil || b.Context != nil {
		t.Fatalf("not-found responses must not carry context: %+v %+v", a, b)
	}

	del := h.do(http.MethodDelete, "/api/clusters/prod/models/claude", "u-owner", acmeID, nil)
	expectError(t, del, http.StatusNotFound, httperr.CodeResourceNotFound)
	if m := getModel(t, h, "claude"); m.Spec.ClusterRef != "staging" {
		t.Fatalf("claude changed: %+v", m.Spec)
	}

	orphan := h.do(http.MethodGet, "/api/clusters/prod/models/llama", "u-owner", acmeID, nil)
	expectError(t, orphan, http.StatusNotFound, httperr.CodeResourceNotFound)

	if w := h.do(http.MethodGet, "/api/clusters/staging/models/claude", "u-owner", acmeID, nil); w.Code != http.StatusOK {
		t.Fatalf("own cluster get: %d", w.Code)
	}
}

func TestViewerCannotMutateAndKubernetesIsNotCalled(t *testing.T) {
	h := newHarness(t, acmeFixtures())
	h.resetCalls()
	w := h.do(http.MethodPost, "/api/clusters/prod/models", "u-viewer", acmeID,
		map[string]any{"metadata": map[string]any{"name": "mistral"}})
	b := expectError(t, w, http.StatusForbidden, httperr.CodeInsufficientPermissions)
	if b.Context["required"] != "create" {
		t.Fatalf("context = %+v", b.Context)
	}
	if n := h.calls.Load(); n != 0 {
		t.Fatalf("kubernetes called %d times", n)
	}
	events, _ := h.audit.Recent(context.Background(), acmeID, 10)
	if len(events) != 1 || events[0].Code != string(httperr.CodeInsufficientPermissions) || events[0].UserID != "u-viewer" {
		t.Fatalf("audit = %+v", events)
	}

	for _, method := range []string{http.MethodPatch, http.MethodDelete} {
		w := h.do(method, "/api/clusters/prod/models/gpt", "u-viewer", acmeID, `{}`)
		expectError(t, w, http.StatusForbidden, httperr.CodeInsufficientPermissions)
	}
}

func TestClusterGate(t *testing.T) {
	h := newHarness(t, acmeFixtures())

	h.resetCalls()
	w := h.do(http.MethodGet, "/api/clusters/Prod_Cluster/models", "u-owner", acmeID, nil)
	b := expectError(t, w, http.StatusBadRequest, httperr.CodeInvalidClusterName)
	if b.Details == nil {
		t.Fatalf("expected rule details: %s", w.Body.String())
	}
	if n := h.calls.Load(); n != 0 {
		t.Fatalf("invalid name reached kubernetes (%d calls)", n)
	}

	w = h.do(http.MethodGet, "/api/clusters/ghost/models", "u-owner", acmeID, nil)
	expectError(t, w, http.StatusNotFound, httperr.CodeClusterNotFound)

	// reads and cluster deletion work on a failed cluster, writes inside it do not
	if w := h.do(http.MethodGet, "/api/clusters/broken/models", "u-owner", acmeID, nil); w.Code != http.StatusOK {
		t.Fatalf("read on failed cluster: %d", w.Code)
	}
	w = h.do(http.MethodPost, "/api/clusters/broken/models", "u-owner", acmeID,
		map[string]any{"metadata": map[string]any{"name": "mistral"}})
	b = expectError(t, w, http.StatusForbidden, httperr.CodeClusterAccessDenied)
	if b.Context["phase"] != string(v1alpha1.ClusterFailed) {
		t.Fatalf("context = %+v", b.Context)
	}
	if w := h.do(http.MethodDelete, "/api/clusters/broken", "u-owner", acmeID, nil); w.Code != http.StatusOK {
		t.Fatalf("delete failed cluster: %d %s", w.Code, w.Body.String())
	}
}

func TestOrganizationsCannotReachEachOther(t *testing.T) {
	objs := acmeFixtures()
	// a cluster in acme's namespace labelled for another organization
	objs = append(objs, labelledCluster("foreign", acmeNS, rivalID, v1alpha1.ClusterReady))
	h := newHarness(t, objs)

	w := h.do(http.MethodGet, "/api/clusters/prod/models", "u-rival", acmeID, nil)
	expectError(t, w, http.StatusForbidden, httperr.CodeOrganizationAccessDenied)

	w = h.do(http.MethodGet, "/api/clusters/foreign", "u-owner", acmeID, nil)
	b := expectError(t, w, http.StatusForbidden, httperr.CodeClusterAccessDenied)
	if b.Context["reason"] != "different organization" {
		t.Fatalf("context = %+v", b.Context)
	}

	// the rival only sees its own namespace
	w = h.do(http.MethodGet, "/api/clusters/prod/models", "u-rival", rivalID, nil)
	var models []v1alpha1.LanguageModel
	decodeData(t, w, &models)
	if len(models) != 1 || models[0].Name != "secret-model" || models[0].Namespace != rivalNS {
		t.Fatalf("rival models = %+v", models)
	}
}

func TestUnknownKind(t *testing.T) {
	h := newHarness(t, acmeFixtures())
	w := h.do(http.MethodGet, "/api/clusters/prod/widgets", "u-owner", acmeID, nil)
	expectError(t, w, http.StatusNotFound, httperr.CodeResourceNotFound)
}

func TestCreateStampsClusterRef(t *testing.T) {
	h := newHarness(t, acmeFixtures())
	w := h.do(http.MethodPost, "/api/clusters/prod/models", "u-editor", acmeID,
		`{"metadata":{"name":"mistral"},"spec":{"provider":"mistral","modelName":"large"}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	m := getModel(t, h, "mistral")
	if m.Spec.ClusterRef != "prod" || m.Labels[v1alpha1.LabelCluster] != "prod" || m.Namespace != acmeNS {
		t.Fatalf("stored = %+v", m)
	}

	w = h.do(http.MethodPost, "/api/clusters/prod/models", "u-editor", acmeID,
		`{"metadata":{"name":"sneaky"},"spec":{"clusterRef":"staging"}}`)
	expectError(t, w, http.StatusConflict, httperr.CodeResourceConflict)

	w = h.do(http.MethodPost, "/api/clusters/prod/models", "u-editor", acmeID,
		`{"metadata":{"name":"Bad_Name"}}`)
	expectError(t, w, http.StatusBadRequest, httperr.CodeInvalidResourceName)

	w = h.do(http.MethodPost, "/api/clusters/prod/models", "u-editor", acmeID,
		`{"metadata":{"name":"elsewhere","namespace":"langop-globex"}}`)
	expectError(t, w, http.StatusBadRequest, httperr.CodeValidation)

	w = h.do(http.MethodPost, "/api/clusters/prod/models", "u-editor", acmeID,
		`{"metadata":{"name":"gpt"}}`)
	expectError(t, w, http.StatusConflict, httperr.CodeResourceConflict)
}

func TestPatchResource(t *testing.T) {
	h := newHarness(t, acmeFixtures())
	w := h.do(http.MethodPatch, "/api/clusters/prod/models/gpt", "u-editor", acmeID,
		`{"spec":{"modelName":"gpt-4o","parameters":{"temperature":"0.2"}}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", w.Code, w.Body.String())
	}
	m := getModel(t, h, "gpt")
	if m.Spec.ModelName != "gpt-4o" || m.Spec.Provider != "openai" || m.Spec.Parameters["temperature"] != "0.2" {
		t.Fatalf("patched = %+v", m.Spec)
	}

	w = h.do(http.MethodPatch, "/api/clusters/prod/models/gpt", "u-editor", acmeID, `{"spec":{"clusterRef":"staging"}}`)
	expectError(t, w, http.StatusConflict, httperr.CodeResourceConflict)
	w = h.do(http.MethodPatch, "/api/clusters/prod/models/gpt", "u-editor", acmeID, `{"spec":{"clusterRef":null}}`)
	expectError(t, w, http.StatusConflict, httperr.CodeResourceConflict)
	w = h.do(http.MethodPatch, "/api/clusters/prod/models/gpt", "u-editor", acmeID, `{"metadata":{"name":"renamed"}}`)
	expectError(t, w, http.StatusConflict, httperr.CodeResourceConflict)
	w = h.do(http.MethodPatch, "/api/clusters/prod/models/gpt", "u-editor", acmeID, `not json`)
	expectError(t, w, http.StatusBadRequest, httperr.CodeValidation)

	w = h.do(http.MethodPatch, "/api/clusters/prod/models/llama", "u-editor", acmeID, `{"spec":{"modelName":"x"}}`)
	expectError(t, w, http.StatusConflict, httperr.CodeOrphanedResource)
	w = h.do(http.MethodPatch, "/api/clusters/prod/models/claude", "u-editor", acmeID, `{"spec":{"modelName":"x"}}`)
	expectError(t, w, http.StatusNotFound, httperr.CodeResourceNotFound)
}

func TestDeleteResource(t *testing.T) {
	h := newHarness(t, acmeFixtures())
	w := h.do(http.MethodDelete, "/api/clusters/prod/models/gpt", "u-editor", acmeID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", w.Code, w.Body.String())
	}
	err := h.kube.Get(context.Background(), ctrlclient.ObjectKey{Namespace: acmeNS, Name: "gpt"}, &v1alpha1.LanguageModel{})
	if !apierrors.IsNotFound(err) {
		t.Fatalf("gpt still present: %v", err)
	}
}

func TestClusterStatsReportsOrphansSeparately(t *testing.T) {
	h := newHarness(t, acmeFixtures())
	w := h.do(http.MethodGet, "/api/clusters/prod/stats", "u-viewer", acmeID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: %d %s", w.Code, w.Body.String())
	}
	var stats ClusterStats
	decodeData(t, w, &stats)
	if stats.Counts["models"] != 1 || stats.Counts["agents"] != 0 {
		t.Fatalf("counts = %+v", stats.Counts)
	}
	if stats.Orphaned["models"] != 1 {
		t.Fatalf("orphaned = %+v", stats.Orphaned)
	}
}

func TestUpstreamForbiddenIsPermissionDenied(t *testing.T) {
	h := newHarness(t, acmeFixtures())
	forbidden := apierrors.NewForbidden(schema.GroupResource{Group: v1alpha1.GroupVersion.Group, Resource: "languagemodels"}, "", errors.New("rbac denied"))
	h.srv.kube = listFails{Client: h.kube, err: forbidden}
	w := h.do(http.MethodGet, "/api/clusters/prod/models", "u-owner", acmeID, nil)
	expectError(t, w, http.StatusForbidden, httperr.CodePermissionDenied)
}

type listFails struct {
	ctrlclient.Client
	err error
}

func (l listFails) List(context.Context, ctrlclient.ObjectList, ...ctrlclient.ListOption) error {
	return l.err
}
