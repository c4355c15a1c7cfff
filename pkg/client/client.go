// Package client is a small Go client for the dashboard HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/language-operator/language-operator-dashboard-sub001/pkg/api/v1alpha1"
	"github.com/language-operator/language-operator-dashboard-sub001/pkg/types"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Client talks to one dashboard base URL on behalf of one caller.
type Client struct {
	base   string
	http   *http.Client
	token  string
	org    string
	userID string
	email  string
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends a bearer token on every request.
func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// WithOrganization selects the organization for cluster routes.
func WithOrganization(id string) Option { return func(c *Client) { c.org = id } }

// WithDevIdentity sends the development identity headers. Only servers
// running without authentication accept them.
func WithDevIdentity(userID, email string) Option {
	return func(c *Client) { c.userID, c.email = userID, email }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func New(base string, opts ...Option) *Client {
	c := &Client{base: strings.TrimRight(base, "/"), http: &http.Client{Timeout: 30 * time.Second}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ForOrganization returns a copy of c scoped to another organization.
func (c *Client) ForOrganization(id string) *Client {
	cp := *c
	cp.org = id
	return &cp
}

// APIError is a non-2xx response decoded from the error body.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details json.RawMessage
	Context map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Organization is an organization with the caller's role in it.
type Organization struct {
	types.Organization
	Role        types.Role `json:"role"`
	Permissions []string   `json:"permissions"`
}

// Cluster is the API view of a LanguageCluster.
type Cluster struct {
	Name        string    `json:"name"`
	Namespace   string    `json:"namespace"`
	Domain      string    `json:"domain,omitempty"`
	Description string    `json:"description,omitempty"`
	Phase       string    `json:"phase,omitempty"`
	Message     string    `json:"message,omitempty"`
	Accessible  bool      `json:"accessible"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ClusterSpec is the body for CreateCluster.
type ClusterSpec struct {
	Name        string            `json:"name"`
	Domain      string            `json:"domain,omitempty"`
	Description string            `json:"description,omitempty"`
	Ingress     map[string]string `json:"ingress,omitempty"`
}

// ClusterStats holds per-kind counts for a cluster.
type ClusterStats struct {
	Cluster  string         `json:"cluster"`
	Phase    string         `json:"phase,omitempty"`
	Counts   map[string]int `json:"counts"`
	Orphaned map[string]int `json:"orphaned"`
}

// Page describes one page of a list response.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// ListOptions selects a page; zero values use server defaults.
type ListOptions struct {
	Page  int
	Limit int
}

func (o ListOptions) query() string {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// Invite is a created invite; Token is only returned here.
type Invite struct {
	types.Invite
	Token string `json:"token"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Meta    *Page           `json:"meta"`
}

type errorBody struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details json.RawMessage   `json:"details"`
	Context map[string]string `json:"context"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (*Page, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
		req.Header.Set("X-User-Email", c.email)
	}
	if c.org != "" {
		req.Header.Set("X-Organization-ID", c.org)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		var eb errorBody
		if err := json.Unmarshal(raw, &eb); err != nil || eb.Code == "" {
			return nil, &APIError{Status: resp.StatusCode, Code: "UNKNOWN", Message: strings.TrimSpace(string(raw))}
		}
		return nil, &APIError{Status: resp.StatusCode, Code: eb.Code, Message: eb.Error, Details: eb.Details, Context: eb.Context}
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}
	return env.Meta, nil
}

func (c *Client) ListOrganizations(ctx context.Context) ([]types.Organization, error) {
	var v []types.Organization
	_, err := c.do(ctx, http.MethodGet, "/api/organizations", nil, &v)
	return v, err
}

// CreateOrganization creates an organization owned by the caller. An empty
// slug is derived from the name.
func (c *Client) CreateOrganization(ctx context.Context, name, slug string) (Organization, error) {
	var v Organization
	_, err := c.do(ctx, http.MethodPost, "/api/organizations", map[string]string{"name": name, "slug": slug}, &v)
	return v, err
}

func (c *Client) GetOrganization(ctx context.Context, id string) (Organization, error) {
	var v Organization
	_, err := c.do(ctx, http.MethodGet, "/api/organizations/"+url.PathEscape(id), nil, &v)
	return v, err
}

func (c *Client) ListMembers(ctx context.Context, orgID string) ([]types.Membership, error) {
	var v []types.Membership
	_, err := c.do(ctx, http.MethodGet, "/api/organizations/"+url.PathEscape(orgID)+"/members", nil, &v)
	return v, err
}

func (c *Client) CreateInvite(ctx context.Context, orgID, email string, role types.Role) (Invite, error) {
	var v Invite
	body := map[string]string{"email": email, "role": string(role)}
	_, err := c.do(ctx, http.MethodPost, "/api/organizations/"+url.PathEscape(orgID)+"/invites", body, &v)
	return v, err
}

func (c *Client) AcceptInvite(ctx context.Context, token string) (types.Membership, error) {
	var v types.Membership
	_, err := c.do(ctx, http.MethodPost, "/api/invites/"+url.PathEscape(token)+"/accept", nil, &v)
	return v, err
}

func (c *Client) ListClusters(ctx context.Context) ([]Cluster, error) {
	var v []Cluster
	_, err := c.do(ctx, http.MethodGet, "/api/clusters", nil, &v)
	return v, err
}

func (c *Client) CreateCluster(ctx context.Context, spec ClusterSpec) (Cluster, error) {
	var v Cluster
	_, err := c.do(ctx, http.MethodPost, "/api/clusters", spec, &v)
	return v, err
}

func (c *Client) ClusterStats(ctx context.Context, cluster string) (ClusterStats, error) {
	var v ClusterStats
	_, err := c.do(ctx, http.MethodGet, clusterPath(cluster)+"/stats", nil, &v)
	return v, err
}

// ListResources lists one kind (by plural, e.g. "models") in a cluster.
func (c *Client) ListResources(ctx context.Context, cluster, kind string, opts ListOptions) ([]unstructured.Unstructured, Page, error) {
	var raw []map[string]any
	meta, err := c.do(ctx, http.MethodGet, resourcePath(cluster, kind, "")+opts.query(), nil, &raw)
	if err != nil {
		return nil, Page{}, err
	}
	items := make([]unstructured.Unstructured, 0, len(raw))
	for _, o := range raw {
		items = append(items, unstructured.Unstructured{Object: o})
	}
	var p Page
	if meta != nil {
		p = *meta
	}
	return items, p, nil
}

// ListModels is ListResources decoded into LanguageModel values.
func (c *Client) ListModels(ctx context.Context, cluster string, opts ListOptions) ([]v1alpha1.LanguageModel, Page, error) {
	var v []v1alpha1.LanguageModel
	meta, err := c.do(ctx, http.MethodGet, resourcePath(cluster, "models", "")+opts.query(), nil, &v)
	if err != nil {
		return nil, Page{}, err
	}
	var p Page
	if meta != nil {
		p = *meta
	}
	return v, p, nil
}

func (c *Client) GetResource(ctx context.Context, cluster, kind, name string) (*unstructured.Unstructured, error) {
	u := &unstructured.Unstructured{Object: map[string]any{}}
	_, err := c.do(ctx, http.MethodGet, resourcePath(cluster, kind, name), nil, &u.Object)
	return u, err
}

// CreateResource submits obj; the server stamps the cluster reference and namespace.
func (c *Client) CreateResource(ctx context.Context, cluster, kind string, obj any) (*unstructured.Unstructured, error) {
	u := &unstructured.Unstructured{Object: map[string]any{}}
	_, err := c.do(ctx, http.MethodPost, resourcePath(cluster, kind, ""), obj, &u.Object)
	return u, err
}

// PatchResource sends a JSON merge patch.
func (c *Client) PatchResource(ctx context.Context, cluster, kind, name string, patch map[string]any) (*unstructured.Unstructured, error) {
	u := &unstructured.Unstructured{Object: map[string]any{}}
	_, err := c.do(ctx, http.MethodPatch, resourcePath(cluster, kind, name), patch, &u.Object)
	return u, err
}

func (c *Client) DeleteResource(ctx context.Context, cluster, kind, name string) error {
	_, err := c.do(ctx, http.MethodDelete, resourcePath(cluster, kind, name), nil, nil)
	return err
}

func clusterPath(cluster string) string {
	return "/api/clusters/" + url.PathEscape(cluster)
}

func resourcePath(cluster, kind, name string) string {
	p := clusterPath(cluster) + "/" + url.PathEscape(kind)
	if name != "" {
		p += "/" + url.PathEscape(name)
	}
	return p
}
