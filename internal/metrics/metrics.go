package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "langop_dashboard",
		Name:      "errors_total",
		Help:      "Error responses by taxonomy code.",
	}, []string{"code"})
	AuthzDenialsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "langop_dashboard",
		Name:      "authz_denials_total",
		Help:      "Authorization failures by stage.",
	}, []string{"stage"})
	ClusterGateSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "langop_dashboard",
		Name:      "cluster_gate_seconds",
		Help:      "Duration of cluster existence checks against the Kubernetes API.",
		Buckets:   prometheus.DefBuckets,
	})
	OrphanedResourcesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "langop_dashboard",
		Name:      "orphaned_resources_total",
		Help:      "Cluster-scoped resources seen without a clusterRef during integrity audits.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(ErrorsTotal, AuthzDenialsTotal, ClusterGateSeconds, OrphanedResourcesTotal)
}
