// Package tenancy maps an authenticated user and an organization to the
// Kubernetes namespace and role every downstream check relies on.
package tenancy

import (
	"strings"

	"github.com/language-operator/language-operator-dashboard-sub001/internal/names"
	"github.com/language-operator/language-operator-dashboard-sub001/pkg/types"
)

const (
	// NamespacePrefix is prepended to every organization namespace.
	NamespacePrefix = "langop-"
	// namespaceMaxLength is the DNS-1123 label limit that applies to namespaces.
	namespaceMaxLength = 63
	idPrefixLength     = 8
)

// DeriveNamespace computes the namespace for a new organization from its slug,
// falling back to the first eight characters of its id. The result is stored on
// the organization and never recomputed afterwards.
func DeriveNamespace(slug, id string) string {
	if s := names.SanitizeMax(slug, namespaceMaxLength-len(NamespacePrefix)); s != "" {
		return NamespacePrefix + s
	}
	short := names.Sanitize(strings.ReplaceAll(id, "-", ""))
	if len(short) > idPrefixLength {
		short = short[:idPrefixLength]
	}
	if short == "" {
		short = "org"
	}
	return NamespacePrefix + short
}

// NamespaceFor returns the organization's frozen namespace. Rows created before
// the namespace column existed fall back to the derivation rule.
func NamespaceFor(org types.Organization) string {
	if org.Namespace != "" {
		return org.Namespace
	}
	return DeriveNamespace(org.Slug, org.ID)
}
