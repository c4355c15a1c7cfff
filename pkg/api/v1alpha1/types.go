package v1alpha1

import (
	"maps"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

var (
	GroupVersion = schema.GroupVersion{Group: "langop.io", Version: "v1alpha1"}
)

const (
	// LabelOrganization marks which organization created a LanguageCluster.
	LabelOrganization = "langop.io/organization-id"
	// LabelCluster mirrors spec.clusterRef on cluster-scoped resources for selectors.
	LabelCluster = "langop.io/cluster"
)

// ClusterPhase is the lifecycle phase reported by the operator on a LanguageCluster.
type ClusterPhase string

const (
	ClusterPending ClusterPhase = "Pending"
	ClusterReady   ClusterPhase = "Ready"
	ClusterFailed  ClusterPhase = "Failed"
	ClusterScaling ClusterPhase = "Scaling"
	ClusterUnknown ClusterPhase = "Unknown"
)

// LanguageClusterSpec defines the desired state of a logical deployment target.
type LanguageClusterSpec struct {
	Domain      string            `json:"domain,omitempty"`
	Description string            `json:"description,omitempty"`
	Ingress     map[string]string `json:"ingress,omitempty"`
}

func (s LanguageClusterSpec) DeepCopy() LanguageClusterSpec {
	out := s
	if s.Ingress != nil {
		out.Ingress = maps.Clone(s.Ingress)
	}
	return out
}

// LanguageClusterStatus is written by the operator; the dashboard only reads it.
type LanguageClusterStatus struct {
	Phase   ClusterPhase `json:"phase,omitempty"`
	Message string       `json:"message,omitempty"`
}

// LanguageCluster is a namespace-scoped deployment target for agents, models, tools and personas.
type LanguageCluster struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   LanguageClusterSpec    `json:"spec,omitempty"`
	Status *LanguageClusterStatus `json:"status,omitempty"`
}

func (in *LanguageCluster) DeepCopyObject() runtime.Object {
	if in == nil {
		return nil
	}
	out := *in
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec.DeepCopy()
	if in.Status != nil {
		st := *in.Status
		out.Status = &st
	}
	return &out
}

// Phase returns the reported phase, or "" when the operator has not written status yet.
func (in *LanguageCluster) Phase() ClusterPhase {
	if in.Status == nil {
		return ""
	}
	return in.Status.Phase
}

// LanguageClusterList contains a list of clusters.
type LanguageClusterList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []LanguageCluster `json:"items"`
}

func (in *LanguageClusterList) DeepCopyObject() runtime.Object {
	if in == nil {
		return nil
	}
	out := *in
	out.ListMeta = in.ListMeta
	if in.Items != nil {
		out.Items = make([]LanguageCluster, len(in.Items))
		for i := range in.Items {
			out.Items[i] = *in.Items[i].DeepCopyObject().(*LanguageCluster)
		}
	}
	return &out
}

// ResourceStatus is the common status shape of cluster-scoped resources.
type ResourceStatus struct {
	Phase   string `json:"phase,omitempty"`
	Message string `json:"message,omitempty"`
}

// LanguageModelSpec describes an LLM endpoint made available inside a cluster.
type LanguageModelSpec struct {
	ClusterRef string            `json:"clusterRef,omitempty"`
	Provider   string            `json:"provider,omitempty"`
	ModelName  string            `json:"modelName,omitempty"`
	Endpoint   string            `json:"endpoint,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

func (s LanguageModelSpec) DeepCopy() LanguageModelSpec {
	out := s
	if s.Parameters != nil {
		out.Parameters = maps.Clone(s.Parameters)
	}
	return out
}

// LanguageModel is a model registration scoped to a LanguageCluster via spec.clusterRef.
type LanguageModel struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   LanguageModelSpec `json:"spec,omitempty"`
	Status ResourceStatus    `json:"status,omitempty"`
}

func (in *LanguageModel) DeepCopyObject() runtime.Object {
	if in == nil {
		return nil
	}
	out := *in
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec.DeepCopy()
	return &out
}

func (in *LanguageModel) GetClusterRef() string    { return in.Spec.ClusterRef }
func (in *LanguageModel) SetClusterRef(ref string) { in.Spec.ClusterRef = ref }

// LanguageModelList lists models.
type LanguageModelList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []LanguageModel `json:"items"`
}

func (in *LanguageModelList) DeepCopyObject() runtime.Object {
	if in == nil {
		return nil
	}
	out := *in
	out.ListMeta = in.ListMeta
	if in.Items != nil {
		out.Items = make([]LanguageModel, len(in.Items))
		for i := range in.Items {
			out.Items[i] = *in.Items[i].DeepCopyObject().(*LanguageModel)
		}
	}
	return &out
}

func (in *LanguageModelList) ScopedItems() []ClusterScopedObject {
	out := make([]ClusterScopedObject, 0, len(in.Items))
	for i := range in.Items {
		out = append(out, &in.Items[i])
	}
	return out
}

// LanguageAgentSpec describes an agent workload and the resources it binds to.
type LanguageAgentSpec struct {
	ClusterRef   string   `json:"clusterRef,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
	ModelRefs    []string `json:"modelRefs,omitempty"`
	ToolRefs     []string `json:"toolRefs,omitempty"`
	PersonaRef   string   `json:"personaRef,omitempty"`
	Replicas     *int32   `json:"replicas,omitempty"`
}

func (s LanguageAgentSpec) DeepCopy() LanguageAgentSpec {
	out := s
	if s.ModelRefs != nil {
		out.ModelRefs = append([]string{}, s.ModelRefs...)
	}
	if s.ToolRefs != nil {
		out.ToolRefs = append([]string{}, s.ToolRefs...)
	}
	if s.Replicas != nil {
		r := *s.Replicas
		out.Replicas = &r
	}
	return out
}

// LanguageAgent is an agent scoped to a LanguageCluster via spec.clusterRef.
type LanguageAgent struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   LanguageAgentSpec `json:"spec,omitempty"`
	Status ResourceStatus    `json:"status,omitempty"`
}

func (in *LanguageAgent) DeepCopyObject() runtime.Object {
	if in == nil {
		return nil
	}
	out := *in
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec.DeepCopy()
	return &out
}

func (in *LanguageAgent) GetClusterRef() string    { return in.Spec.ClusterRef }
func (in *LanguageAgent) SetClusterRef(ref string) { in.Spec.ClusterRef = ref }

// LanguageAgentList lists agents.
type LanguageAgentList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []LanguageAgent `json:"items"`
}

func (in *LanguageAgentList) DeepCopyObject() runtime.Object {
	if in == nil {
		return nil
	}
	out := *in
	out.ListMeta = in.ListMeta
	if in.Items != nil {
		out.Items = make([]LanguageAgent, len(in.Items))
		for i := range in.Items {
			out.Items[i] = *in.Items[i].DeepCopyObject().(*LanguageAgent)
		}
	}
	return &out
}

func (in *LanguageAgentList) ScopedItems() []ClusterScopedObject {
	out := make([]ClusterScopedObject, 0, len(in.Items))
	for i := range in.Items {
		out = append(out, &in.Items[i])
	}
	return out
}

// LanguageToolSpec describes a tool server agents can call.
type LanguageToolSpec struct {
	ClusterRef string            `json:"clusterRef,omitempty"`
	Type       string            `json:"type,omitempty"`
	Image      string            `json:"image,omitempty"`
	Endpoint   string            `json:"endpoint,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
}

func (s LanguageToolSpec) DeepCopy() LanguageToolSpec {
	out := s
	if s.Env != nil {
		out.Env = maps.Clone(s.Env)
	}
	return out
}

// LanguageTool is a tool scoped to a LanguageCluster via spec.clusterRef.
type LanguageTool struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   LanguageToolSpec `json:"spec,omitempty"`
	Status ResourceStatus   `json:"status,omitempty"`
}

func (in *LanguageTool) DeepCopyObject() runtime.Object {
	if in == nil {
		return nil
	}
	out := *in
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec.DeepCopy()
	return &out
}

func (in *LanguageTool) GetClusterRef() string    { return in.Spec.ClusterRef }
func (in *LanguageTool) SetClusterRef(ref string) { in.Spec.ClusterRef = ref }

// LanguageToolList lists tools.
type LanguageToolList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []LanguageTool `json:"items"`
}

func (in *LanguageToolList) DeepCopyObject() runtime.Object {
	if in == nil {
		return nil
	}
	out := *in
	out.ListMeta = in.ListMeta
	if in.Items != nil {
		out.Items = make([]LanguageTool, len(in.Items))
		for i := range in.Items {
			out.Items[i] = *in.Items[i].DeepCopyObject().(*LanguageTool)
		}
	}
	return &out
}

func (in *LanguageToolList) ScopedItems() []ClusterScopedObject {
	out := make([]ClusterScopedObject, 0, len(in.Items))
	for i := range in.Items {
		out = append(out, &in.Items[i])
	}
	return out
}

// LanguagePersonaSpec describes a reusable agent persona.
type LanguagePersonaSpec struct {
	ClusterRef   string `json:"clusterRef,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	Description  string `json:"description,omitempty"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
	Tone         string `json:"tone,omitempty"`
}

func (s LanguagePersonaSpec) DeepCopy() LanguagePersonaSpec { return s }

// LanguagePersona is a persona scoped to a LanguageCluster via spec.clusterRef.
type LanguagePersona struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   LanguagePersonaSpec `json:"spec,omitempty"`
	Status ResourceStatus      `json:"status,omitempty"`
}

func (in *LanguagePersona) DeepCopyObject() runtime.Object {
	if in == nil {
		return nil
	}
	out := *in
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec.DeepCopy()
	return &out
}

func (in *LanguagePersona) GetClusterRef() string    { return in.Spec.ClusterRef }
func (in *LanguagePersona) SetClusterRef(ref string) { in.Spec.ClusterRef = ref }

// LanguagePersonaList lists personas.
type LanguagePersonaList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []LanguagePersona `json:"items"`
}

func (in *LanguagePersonaList) DeepCopyObject() runtime.Object {
	if in == nil {
		return nil
	}
	out := *in
	out.ListMeta = in.ListMeta
	if in.Items != nil {
		out.Items = make([]LanguagePersona, len(in.Items))
		for i := range in.Items {
			out.Items[i] = *in.Items[i].DeepCopyObject().(*LanguagePersona)
		}
	}
	return &out
}

func (in *LanguagePersonaList) ScopedItems() []ClusterScopedObject {
	out := make([]ClusterScopedObject, 0, len(in.Items))
	for i := range in.Items {
		out = append(out, &in.Items[i])
	}
	return out
}

// AddToScheme registers all Language Operator API types.
func AddToScheme(scheme *runtime.Scheme) error {
	scheme.AddKnownTypes(GroupVersion,
		&LanguageCluster{}, &LanguageClusterList{},
		&LanguageModel{}, &LanguageModelList{},
		&LanguageAgent{}, &LanguageAgentList{},
		&LanguageTool{}, &LanguageToolList{},
		&LanguagePersona{}, &LanguagePersonaList{},
	)
	metav1.AddToGroupVersion(scheme, GroupVersion)
	return nil
}
