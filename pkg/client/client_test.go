package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/language-operator/language-operator-dashboard-sub001/internal/cluster"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/manager"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/store"
	"github.com/language-operator/language-operator-dashboard-sub001/pkg/api/v1alpha1"
	"github.com/language-operator/language-operator-dashboard-sub001/pkg/types"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	scheme, err := cluster.NewScheme()
	if err != nil {
		t.Fatalf("scheme: %v", err)
	}
	kube := fake.NewClientBuilder().WithScheme(scheme).Build()
	srv := manager.NewServer(manager.Options{Store: store.NewMemory(), Kube: kube})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func TestClientOrganizationClusterResources(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	alice := New(ts.URL, WithDevIdentity("u-alice", "alice@example.test"))

	org, err := alice.CreateOrganization(ctx, "Acme Research", "")
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	if org.Slug != "acme-research" || org.Role != types.RoleOwner {
		t.Fatalf("unexpected org: %+v", org)
	}
	alice = alice.ForOrganization(org.ID)

	if _, err := alice.CreateCluster(ctx, ClusterSpec{Name: "prod", Domain: "prod.example.test"}); err != nil {
		t.Fatalf("create cluster: %v", err)
	}
	clusters, err := alice.ListClusters(ctx)
	if err != nil || len(clusters) != 1 || clusters[0].Namespace != org.Namespace {
		t.Fatalf("list clusters: %v %+v", err, clusters)
	}

	for _, name := range []string{"gpt", "claude", "llama"} {
		m := v1alpha1.LanguageModel{ObjectMeta: metav1.ObjectMeta{Name: name}}
		m.Spec.Provider = "openai"
		if _, err := alice.CreateResource(ctx, "prod", "models", m); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	models, page, err := alice.ListModels(ctx, "prod", ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("list models: %v", err)
	}
	if len(models) != 2 || page.Total != 3 || models[0].Name != "claude" {
		t.Fatalf("unexpected page: %d items, %+v, first %q", len(models), page, models[0].Name)
	}
	if models[0].Spec.ClusterRef != "prod" || models[0].Namespace != org.Namespace {
		t.Fatalf("model not stamped: %+v", models[0])
	}

	patched, err := alice.PatchResource(ctx, "prod", "models", "gpt", map[string]any{
		"spec": map[string]any{"modelName": "gpt-4o"},
	})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if got, _, _ := unstructured.NestedString(patched.Object, "spec", "modelName"); got != "gpt-4o" {
		t.Fatalf("modelName = %q", got)
	}

	if err := alice.DeleteResource(ctx, "prod", "models", "llama"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	stats, err := alice.ClusterStats(ctx, "prod")
	if err != nil || stats.Counts["models"] != 2 {
		t.Fatalf("stats: %v %+v", err, stats)
	}

	_, err = alice.GetResource(ctx, "prod", "models", "llama")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || apiErr.Code != "RESOURCE_NOT_FOUND" {
		t.Fatalf("expected RESOURCE_NOT_FOUND, got %v", err)
	}
}

func TestClientInviteAndPermissionErrors(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	owner := New(ts.URL, WithDevIdentity("u-owner", "owner@example.test"))
	org, err := owner.CreateOrganization(ctx, "Globex", "globex")
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	owner = owner.ForOrganization(org.ID)
	if _, err := owner.CreateCluster(ctx, ClusterSpec{Name: "dev"}); err != nil {
		t.Fatalf("create cluster: %v", err)
	}

	inv, err := owner.CreateInvite(ctx, org.ID, "viewer@example.test", types.RoleViewer)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if inv.Token == "" {
		t.Fatalf("invite token missing from creation response")
	}

	viewer := New(ts.URL, WithDevIdentity("u-viewer", "viewer@example.test"), WithOrganization(org.ID))
	m, err := viewer.AcceptInvite(ctx, inv.Token)
	if err != nil || m.Role != types.RoleViewer {
		t.Fatalf("accept: %v %+v", err, m)
	}
	if _, err := viewer.ListClusters(ctx); err != nil {
		t.Fatalf("viewer list clusters: %v", err)
	}

	_, err = viewer.CreateResource(ctx, "dev", "tools", map[string]any{"metadata": map[string]any{"name": "search"}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden || apiErr.Code != "INSUFFICIENT_PERMISSIONS" {
		t.Fatalf("expected INSUFFICIENT_PERMISSIONS, got %v", err)
	}

	outsider := New(ts.URL, WithDevIdentity("u-out", "out@example.test"), WithOrganization(org.ID))
	_, err = outsider.ListClusters(ctx)
	if !errors.As(err, &apiErr) || apiErr.Code != "ORGANIZATION_ACCESS_DENIED" {
		t.Fatalf("expected ORGANIZATION_ACCESS_DENIED, got %v", err)
	}
}
