package v1alpha1

import (
	"sort"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// ClusterScopedObject is implemented by every resource that names its owning
// LanguageCluster through spec.clusterRef.
type ClusterScopedObject interface {
	metav1.Object
	runtime.Object
	GetClusterRef() string
	SetClusterRef(string)
}

// ClusterScopedList is the list counterpart of ClusterScopedObject.
type ClusterScopedList interface {
	metav1.ListInterface
	runtime.Object
	ScopedItems() []ClusterScopedObject
}

// Kind describes one cluster-scoped resource kind as exposed over the API.
type Kind struct {
	// Plural is the URL segment, e.g. "models".
	Plural  string
	Kind    string
	New     func() ClusterScopedObject
	NewList func() ClusterScopedList
}

var kinds = map[string]Kind{
	"models": {
		Plural:  "models",
		Kind:    "LanguageModel",
		New:     func() ClusterScopedObject { return &LanguageModel{} },
		NewList: func() ClusterScopedList { return &LanguageModelList{} },
	},
	"agents": {
		Plural:  "agents",
		Kind:    "LanguageAgent",
		New:     func() ClusterScopedObject { return &LanguageAgent{} },
		NewList: func() ClusterScopedList { return &LanguageAgentList{} },
	},
	"tools": {
		Plural:  "tools",
		Kind:    "LanguageTool",
		New:     func() ClusterScopedObject { return &LanguageTool{} },
		NewList: func() ClusterScopedList { return &LanguageToolList{} },
	},
	"personas": {
		Plural:  "personas",
		Kind:    "LanguagePersona",
		New:     func() ClusterScopedObject { return &LanguagePersona{} },
		NewList: func() ClusterScopedList { return &LanguagePersonaList{} },
	},
}

// KindFor resolves a URL plural to its Kind.
func KindFor(plural string) (Kind, bool) {
	k, ok := kinds[plural]
	return k, ok
}

// Kinds returns all cluster-scoped kinds ordered by plural.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Plural < out[j].Plural })
	return out
}
