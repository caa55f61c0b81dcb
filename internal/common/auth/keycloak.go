package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"visa-portal/internal/common/errors"
	commonhttp "visa-portal/internal/common/http"
	"visa-portal/internal/models"
)

// KeycloakClient validates bearer tokens with the realm's introspection endpoint.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	adminRole    string
	httpClient   *commonhttp.Client
}

type TokenInfo struct {
	Active      bool   `json:"active"`
	Scope       string `json:"scope,omitempty"`
	ClientID    string `json:"client_id,omitempty"`
	Username    string `json:"username,omitempty"`
	Email       string `json:"email,omitempty"`
	Name        string `json:"name,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	Exp         int64  `json:"exp,omitempty"`
	Sub         string `json:"sub,omitempty"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

func NewKeycloakClient(baseURL, realm, clientID, clientSecret, adminRole string) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		adminRole:    adminRole,
		httpClient:   commonhttp.NewClient(10 * time.Second),
	}
}

// ValidateToken returns the introspection result for an active token.
func (k *KeycloakClient) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	introspectURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect", k.baseURL, k.realm)

	data := url.Values{}
	data.Set("token", token)
	data.Set("token_type_hint", "access_token")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	resp, err := k.httpClient.PostForm(ctx, introspectURL, data)
	if err != nil {
		return nil, errors.NewExternalServiceError("keycloak", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.NewExternalServiceError("keycloak",
			fmt.Errorf("introspection returned %d: %s", resp.StatusCode, string(body)))
	}

	var info TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.NewExternalServiceError("keycloak", fmt.Errorf("decode introspection: %w", err))
	}
	if !info.Active || info.Sub == "" {
		return nil, errors.NewAuthenticationError("token is expired, revoked or malformed")
	}
	return &info, nil
}

// ResolveActor maps a bearer token to the caller's identity and role.
func (k *KeycloakClient) ResolveActor(ctx context.Context, token string) (models.Actor, error) {
	info, err := k.ValidateToken(ctx, token)
	if err != nil {
		return models.Actor{}, err
	}
	return ActorFromToken(info, k.adminRole), nil
}

func ActorFromToken(info *TokenInfo, adminRole string) models.Actor {
	actor := models.Actor{ID: info.Sub, Email: info.Email, Name: info.Name, Role: models.RoleUser}
	if actor.Name == "" {
		actor.Name = info.Username
	}
	for _, role := range info.RealmAccess.Roles {
		if role == adminRole {
			actor.Role = models.RoleAdmin
			break
		}
	}
	return actor
}
