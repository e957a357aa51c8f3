// Package directory reads users, group members and managers from the cloud
// directory tenant over its REST API.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/spec-kit/expiry-notifier/internal/domain"
)

const (
	defaultBaseURL     = "https://graph.microsoft.com/v1.0"
	defaultScope       = "https://graph.microsoft.com/.default"
	tokenURLFormat     = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
	defaultHTTPTimeout = 30 * time.Second
	pageSize           = 999

	userSelectFields = "id,displayName,userPrincipalName,accountEnabled,lastPasswordChangeDateTime,createdDateTime,onPremisesSyncEnabled,passwordPolicies"
)

// Client is the read-only directory surface the notifier needs.
type Client interface {
	// ListUsers returns every user in the tenant.
	ListUsers(ctx context.Context) ([]domain.UserRecord, error)
	// ListGroupMembers resolves a group by display name and returns its
	// transitive user members.
	ListGroupMembers(ctx context.Context, groupName string) ([]domain.UserRecord, error)
	// GetManager returns the manager's mail address for a user, or empty
	// when the user has no manager assigned.
	GetManager(ctx context.Context, userID string) (string, error)
}

// Config carries the tenant coordinates. BaseURL and Timeout are overridable
// for tests.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	BaseURL      string
	Timeout      time.Duration
}

// GraphClient talks to the directory REST API with client-credential
// authentication.
type GraphClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGraphClient validates the credentials and builds an authenticating
// client. Token acquisition happens lazily on the first request.
func NewGraphClient(cfg Config, logger *zap.Logger) (*GraphClient, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("directory credentials not configured")
	}

	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf(tokenURLFormat, cfg.TenantID),
		Scopes:       []string{defaultScope},
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	httpClient := creds.Client(context.Background())
	httpClient.Timeout = timeout

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &GraphClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type graphUser struct {
	ID                         string     `json:"id"`
	DisplayName                string     `json:"displayName"`
	UserPrincipalName          string     `json:"userPrincipalName"`
	AccountEnabled             bool       `json:"accountEnabled"`
	LastPasswordChangeDateTime *time.Time `json:"lastPasswordChangeDateTime"`
	CreatedDateTime            *time.Time `json:"createdDateTime"`
	OnPremisesSyncEnabled      *bool      `json:"onPremisesSyncEnabled"`
	PasswordPolicies           string     `json:"passwordPolicies"`
}

type userPage struct {
	Value    []graphUser `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

type groupPage struct {
	Value []struct {
		ID string `json:"id"`
	} `json:"value"`
}

type managerResponse struct {
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// ListUsers pages through /users.
func (c *GraphClient) ListUsers(ctx context.Context) ([]domain.UserRecord, error) {
	first := fmt.Sprintf("%s/users?$select=%s&$top=%d", c.baseURL, userSelectFields, pageSize)
	return c.collectUsers(ctx, first)
}

// ListGroupMembers resolves the group by display name, then pages through
// its transitive user members so nested groups are flattened.
func (c *GraphClient) ListGroupMembers(ctx context.Context, groupName string) ([]domain.UserRecord, error) {
	groupID, err := c.findGroupID(ctx, groupName)
	if err != nil {
		return nil, err
	}

	first := fmt.Sprintf("%s/groups/%s/transitiveMembers/microsoft.graph.user?$select=%s&$top=%d",
		c.baseURL, url.PathEscape(groupID), userSelectFields, pageSize)
	return c.collectUsers(ctx, first)
}

// GetManager reads the manager reference. A missing manager is not an
// error; the API reports it as 404.
func (c *GraphClient) GetManager(ctx context.Context, userID string) (string, error) {
	endpoint := fmt.Sprintf("%s/users/%s/manager?$select=mail,userPrincipalName", c.baseURL, url.PathEscape(userID))

	var mgr managerResponse
	status, err := c.get(ctx, endpoint, &mgr)
	if status == http.StatusNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if mgr.Mail != "" {
		return mgr.Mail, nil
	}
	return mgr.UserPrincipalName, nil
}

func (c *GraphClient) findGroupID(ctx context.Context, groupName string) (string, error) {
	filter := fmt.Sprintf("displayName eq '%s'", strings.ReplaceAll(groupName, "'", "''"))
	endpoint := fmt.Sprintf("%s/groups?$filter=%s&$select=id", c.baseURL, url.QueryEscape(filter))

	var page groupPage
	if _, err := c.get(ctx, endpoint, &page); err != nil {
		return "", fmt.Errorf("resolve group %q: %w", groupName, err)
	}
	if len(page.Value) == 0 {
		return "", fmt.Errorf("group %q not found in directory", groupName)
	}
	return page.Value[0].ID, nil
}

func (c *GraphClient) collectUsers(ctx context.Context, first string) ([]domain.UserRecord, error) {
	var users []domain.UserRecord
	next := first
	for next != "" {
		var page userPage
		if _, err := c.get(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, u := range page.Value {
			users = append(users, toUserRecord(u))
		}
		next = page.NextLink
	}
	c.logger.Debug("directory fetch complete", zap.Int("users", len(users)))
	return users, nil
}

// get performs one authenticated GET, decoding the body into out on 200.
// The HTTP status is returned either way so callers can special-case 404.
func (c *GraphClient) get(ctx context.Context, endpoint string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	// $filter on display name requires eventual consistency headers
	req.Header.Set("ConsistencyLevel", "eventual")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("directory request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("directory request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode directory response: %w", err)
	}
	return resp.StatusCode, nil
}

func toUserRecord(u graphUser) domain.UserRecord {
	rec := domain.UserRecord{
		ID:                   u.ID,
		DisplayName:          u.DisplayName,
		PrincipalName:        u.UserPrincipalName,
		AccountEnabled:       u.AccountEnabled,
		LastPasswordChangeAt: u.LastPasswordChangeDateTime,
		CreatedAt:            u.CreatedDateTime,
		PasswordPolicies:     u.PasswordPolicies,
	}
	if u.OnPremisesSyncEnabled != nil {
		rec.OnPremisesSync = *u.OnPremisesSyncEnabled
	}
	return rec
}
