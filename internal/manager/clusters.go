package manager

import (
	"net/http"
	"sort"
	"time"

	"github.com/language-operator/language-operator-dashboard-sub001/internal/cluster"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/lib/httperr"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/logging"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/names"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/tenancy"
	"github.com/language-operator/language-operator-dashboard-sub001/pkg/api/v1alpha1"
	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	ctrlclient "sigs.k8s.io/controller-runtime/pkg/client"
)

// ClusterRequest is the body of POST /api/clusters.
type ClusterRequest struct {
	Name        string            `json:"name"`
	Domain      string            `json:"domain,omitempty"`
	Description string            `json:"description,omitempty"`
	Ingress     map[string]string `json:"ingress,omitempty"`
}

// ClusterView is how a LanguageCluster is presented to clients.
type ClusterView struct {
	Name        string                `json:"name"`
	Namespace   string                `json:"namespace"`
	Domain      string                `json:"domain,omitempty"`
	Description string                `json:"description,omitempty"`
	Phase       v1alpha1.ClusterPhase `json:"phase,omitempty"`
	Message     string                `json:"message,omitempty"`
	Accessible  bool                  `json:"accessible"`
	CreatedAt   time.Time             `json:"createdAt"`
}

func viewCluster(c *v1alpha1.LanguageCluster) ClusterView {
	v := ClusterView{
		Name:        c.Name,
		Namespace:   c.Namespace,
		Domain:      c.Spec.Domain,
		Description: c.Spec.Description,
		Phase:       c.Phase(),
		Accessible:  cluster.IsAccessible(c),
		CreatedAt:   c.CreationTimestamp.Time,
	}
	if c.Status != nil {
		v.Message = c.Status.Message
	}
	return v
}

// listClusters returns the organization's clusters. ?accessible=true keeps
// only clusters that accept writes.
func (s *Server) listClusters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, _ := tenancy.ScopeFrom(ctx)
	list := &v1alpha1.LanguageClusterList{}
	if err := s.kube.List(ctx, list,
		ctrlclient.InNamespace(scope.Namespace),
		ctrlclient.MatchingLabels{v1alpha1.LabelOrganization: scope.OrganizationID},
	); err != nil {
		s.fail(w, r, err)
		return
	}
	onlyAccessible := parseBool(r.URL.Query().Get("accessible"))
	out := make([]ClusterView, 0, len(list.Items))
	for i := range list.Items {
		v := viewCluster(&list.Items[i])
		if onlyAccessible && !v.Accessible {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	httperr.OK(w, http.StatusOK, out, "")
}

func (s *Server) createCluster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, _ := tenancy.ScopeFrom(ctx)
	var req ClusterRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := names.ValidateField("cluster", req.Name); err != nil {
		s.fail(w, r, err)
		return
	}
	c := &v1alpha1.LanguageCluster{
		ObjectMeta: metav1.ObjectMeta{
			Name:      req.Name,
			Namespace: scope.Namespace,
			Labels:    map[string]string{v1alpha1.LabelOrganization: scope.OrganizationID},
		},
		Spec: v1alpha1.LanguageClusterSpec{
			Domain:      req.Domain,
			Description: req.Description,
			Ingress:     req.Ingress,
		},
	}
	if err := s.kube.Create(ctx, c); err != nil {
		s.fail(w, r, err)
		return
	}
	logging.FromContext(ctx).Info("cluster_created", zap.String("cluster", c.Name))
	httperr.OK(w, http.StatusCreated, viewCluster(c), "cluster created")
}

func (s *Server) getCluster(w http.ResponseWriter, r *http.Request) {
	httperr.OK(w, http.StatusOK, viewCluster(clusterFrom(r.Context())), "")
}

// deleteCluster removes the LanguageCluster only. Resources that referenced
// it stay in the namespace and become unreachable through any cluster route.
func (s *Server) deleteCluster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := clusterFrom(ctx)
	if err := s.kube.Delete(ctx, c, uidPrecondition(c)...); err != nil {
		s.fail(w, r, err)
		return
	}
	logging.FromContext(ctx).Info("cluster_deleted", zap.String("cluster", c.Name))
	httperr.OK(w, http.StatusOK, map[string]string{"name": c.Name}, "cluster deleted")
}

func uidPrecondition(obj ctrlclient.Object) []ctrlclient.DeleteOption {
	uid := obj.GetUID()
	if uid == "" {
		return nil
	}
	return []ctrlclient.DeleteOption{ctrlclient.Preconditions{UID: &uid}}
}
