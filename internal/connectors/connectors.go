// Package connectors implements the connector registry and OAuth/
// service-account lifecycle (C6): persisted connector records, OAuth
// state/PKCE bookkeeping, and service-account credential storage.
package connectors

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"

	"github.com/corewire/assistant-core/internal/cryptutil"
	"github.com/corewire/assistant-core/internal/store"
	"github.com/corewire/assistant-core/pkg/apperr"
	"github.com/corewire/assistant-core/pkg/contracts"
	"github.com/corewire/assistant-core/pkg/models"
)

const cookieMaxAge = 10 * time.Minute

// Cookie names are keyed by app (§4.6) so two concurrent OAuth flows
// for different apps (e.g. Google and Slack) never clobber each
// other's state/verifier pair.
func stateCookieName(app models.SourceApp) string    { return string(app) + "-state" }
func verifierCookieName(app models.SourceApp) string { return string(app) + "-code-verifier" }

// ErrGlobalProviderExists is returned by CreateOAuthProvider when a
// global provider already exists for the requested app; a second one
// is rejected rather than silently shadowed.
var ErrGlobalProviderExists = apperr.New(models.ErrAuthInvalid, "a global OAuth provider already exists for this app")

// oauthState is the JSON payload encoded into the state parameter and
// round-tripped through the callback, matching spec's "state as a JSON
// payload {app, random, optional ingestion parameters}".
type oauthState struct {
	App       models.SourceApp      `json:"app"`
	Random    string                `json:"random"`
	Workspace string                `json:"workspace"`
	UserID    string                `json:"userId"`
	Scope     models.IngestionState `json:"scope,omitempty"`
}

// Service implements the connector registry and OAuth lifecycle.
type Service struct {
	store       store.Store
	crypto      *cryptutil.Box
	scheduler   contracts.IngestionScheduler
	redirect    string
	slackScopes string
}

// New builds a Service. scheduler may be contracts.NoopIngestionScheduler{}
// when the ingestion subsystem is wired up separately.
func New(s store.Store, crypto *cryptutil.Box, scheduler contracts.IngestionScheduler, redirectBaseURL, slackScopes string) *Service {
	return &Service{
		store:       s,
		crypto:      crypto,
		scheduler:   scheduler,
		redirect:    redirectBaseURL,
		slackScopes: slackScopes,
	}
}

// ListConnectors returns non-deleted connectors visible to userID
// within workspaceID.
func (s *Service) ListConnectors(ctx context.Context, workspaceID, userID string) ([]models.Connector, error) {
	return s.store.ListConnectors(ctx, workspaceID, userID)
}

// CreateConnector persists a new connector record. ExternalID is
// generated when unset.
func (s *Service) CreateConnector(ctx context.Context, c *models.Connector) error {
	if c.ExternalID == "" {
		c.ExternalID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = models.ConnectorNotConnected
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	if err := s.store.CreateConnector(ctx, c); err != nil {
		return fmt.Errorf("connectors: create: %w", err)
	}
	return nil
}

func (s *Service) UpdateConnectorStatus(ctx context.Context, externalID string, status models.ConnectorStatus) error {
	return s.store.UpdateConnectorStatus(ctx, externalID, status)
}

// DeleteConnector cascades to the connector's synced tools and any
// queued/running ingestion jobs before soft-deleting the record
// itself (testable property 7).
func (s *Service) DeleteConnector(ctx context.Context, workspaceID, externalID string) error {
	if err := s.store.DeleteConnectorTools(ctx, workspaceID, externalID); err != nil {
		return fmt.Errorf("connectors: cascade tools: %w", err)
	}
	if err := s.store.CancelJobsForConnector(ctx, externalID); err != nil {
		return fmt.Errorf("connectors: cascade jobs: %w", err)
	}
	if err := s.store.DeleteConnector(ctx, externalID); err != nil {
		return fmt.Errorf("connectors: delete: %w", err)
	}
	return nil
}

// CreateOAuthProvider records client credentials for app. A second
// global provider for the same app is rejected (Open Question,
// resolved in DESIGN.md).
func (s *Service) CreateOAuthProvider(ctx context.Context, workspaceID string, app models.SourceApp, clientID, clientSecret string, scopes []string, isGlobal bool) (*models.OAuthProvider, error) {
	if isGlobal {
		existing, err := s.store.FindGlobalProvider(ctx, app)
		if err != nil && err != store.ErrNotFound {
			return nil, fmt.Errorf("connectors: check global provider: %w", err)
		}
		if existing != nil {
			return nil, ErrGlobalProviderExists
		}
	}
	encSecret, err := s.crypto.Encrypt([]byte(clientSecret))
	if err != nil {
		return nil, fmt.Errorf("connectors: encrypt client secret: %w", err)
	}
	provider := &models.OAuthProvider{
		ID:              uuid.New().String(),
		WorkspaceID:     workspaceID,
		App:             app,
		ClientID:        clientID,
		EncryptedSecret: encSecret,
		Scopes:          scopes,
		IsGlobal:        isGlobal,
		CreatedAt:       time.Now(),
	}
	if err := s.store.CreateOAuthProvider(ctx, provider); err != nil {
		return nil, fmt.Errorf("connectors: persist provider: %w", err)
	}
	return provider, nil
}

// StartOAuth begins the authorization-code flow for app: it mints a
// random state and PKCE verifier, sets short-lived host-only cookies,
// and returns the provider-specific authorization URL.
func (s *Service) StartOAuth(ctx context.Context, w http.ResponseWriter, workspaceID, userID string, app models.SourceApp, scope models.IngestionState) (string, error) {
	provider, err := s.store.FindGlobalProvider(ctx, app)
	if err != nil {
		if err == store.ErrNotFound {
			return "", apperr.New(models.ErrAuthInvalid, fmt.Sprintf("no OAuth provider configured for %s", app))
		}
		return "", fmt.Errorf("connectors: find provider: %w", err)
	}

	random := make([]byte, 16)
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("connectors: generate state: %w", err)
	}
	state := oauthState{
		App:       app,
		Random:    base64.RawURLEncoding.EncodeToString(random),
		Workspace: workspaceID,
		UserID:    userID,
		Scope:     scope,
	}
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("connectors: encode state: %w", err)
	}
	encodedState := base64.RawURLEncoding.EncodeToString(stateJSON)
	verifier := oauth2.GenerateVerifier()

	setShortLivedCookie(w, stateCookieName(app), encodedState)
	setShortLivedCookie(w, verifierCookieName(app), verifier)

	redirectURL := fmt.Sprintf("%s/oauth/callback", s.redirect)

	switch app {
	case models.AppGoogle, models.AppMail, models.AppDrive:
		cfg := &oauth2.Config{
			ClientID:    provider.ClientID,
			Endpoint:    google.Endpoint,
			RedirectURL: redirectURL,
			Scopes:      provider.Scopes,
		}
		authURL := cfg.AuthCodeURL(encodedState,
			oauth2.AccessTypeOffline,
			oauth2.SetAuthURLParam("prompt", "consent"),
			oauth2.S256ChallengeOption(verifier),
		)
		return authURL, nil
	case models.AppMicrosoft, models.AppSharePoint:
		cfg := &oauth2.Config{
			ClientID:    provider.ClientID,
			Endpoint:    microsoft.AzureADEndpoint("common"),
			RedirectURL: redirectURL,
			Scopes:      provider.Scopes,
		}
		authURL := cfg.AuthCodeURL(encodedState, oauth2.S256ChallengeOption(verifier))
		return authURL, nil
	case models.AppSlack, models.AppChat:
		return s.slackAuthURL(provider.ClientID, encodedState, redirectURL), nil
	default:
		return "", apperr.New(models.ErrInvalidModel, fmt.Sprintf("unsupported app for OAuth: %s", app))
	}
}

// slackAuthURL hand-builds Slack's authorization URL; no standard
// oauth2 endpoint helper exists for Slack in the ecosystem.
func (s *Service) slackAuthURL(clientID, state, redirectURL string) string {
	return fmt.Sprintf(
		"https://slack.com/oauth/v2/authorize?client_id=%s&scope=%s&state=%s&redirect_uri=%s",
		clientID, s.slackScopes, state, redirectURL,
	)
}

// VerifyOAuthState checks that the callback's state parameter matches
// the cookie set by StartOAuth (testable property 6) and that neither
// cookie has expired, returning the decoded state payload and PKCE
// verifier on success.
func VerifyOAuthState(r *http.Request, callbackState string) (*oauthStatePayload, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(callbackState)
	if err != nil {
		return nil, "", apperr.New(models.ErrAuthInvalid, "malformed oauth state")
	}
	var decoded oauthState
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, "", apperr.New(models.ErrAuthInvalid, "malformed oauth state payload")
	}

	cookieState, err := r.Cookie(stateCookieName(decoded.App))
	if err != nil {
		return nil, "", apperr.New(models.ErrAuthInvalid, "missing oauth state cookie")
	}
	if cookieState.Value != callbackState {
		return nil, "", apperr.New(models.ErrAuthInvalid, "oauth state mismatch")
	}
	verifierCookie, err := r.Cookie(verifierCookieName(decoded.App))
	if err != nil {
		return nil, "", apperr.New(models.ErrAuthInvalid, "missing oauth code verifier cookie")
	}

	return &oauthStatePayload{
		App:       decoded.App,
		Workspace: decoded.Workspace,
		UserID:    decoded.UserID,
		Scope:     decoded.Scope,
	}, verifierCookie.Value, nil
}

// oauthStatePayload is the exported view of oauthState returned to
// callback handlers after verification.
type oauthStatePayload struct {
	App       models.SourceApp
	Workspace string
	UserID    string
	Scope     models.IngestionState
}

// oauthEndpointFor returns the provider-specific token/auth endpoint
// pair used for both the initial authorization URL and the subsequent
// code exchange.
func oauthEndpointFor(app models.SourceApp) (oauth2.Endpoint, error) {
	switch app {
	case models.AppGoogle, models.AppMail, models.AppDrive:
		return google.Endpoint, nil
	case models.AppMicrosoft, models.AppSharePoint:
		return microsoft.AzureADEndpoint("common"), nil
	case models.AppSlack, models.AppChat:
		return oauth2.Endpoint{
			AuthURL:  "https://slack.com/oauth/v2/authorize",
			TokenURL: "https://slack.com/api/oauth.v2.access",
		}, nil
	default:
		return oauth2.Endpoint{}, apperr.New(models.ErrInvalidModel, fmt.Sprintf("unsupported app for OAuth: %s", app))
	}
}

// CompleteOAuth finishes the authorization-code flow begun by
// StartOAuth: it verifies the callback's state against the cookie
// pair, exchanges the code for a token using the matching provider's
// endpoint and the original PKCE verifier, and persists a new
// connector bound to the workspace/user recorded in the state payload.
// Ingestion is scheduled immediately after, mirroring
// AddServiceConnection's post-connect behavior.
func (s *Service) CompleteOAuth(ctx context.Context, r *http.Request, code, callbackState string) (*models.Connector, error) {
	payload, verifier, err := VerifyOAuthState(r, callbackState)
	if err != nil {
		return nil, err
	}

	provider, err := s.store.FindGlobalProvider(ctx, payload.App)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.New(models.ErrAuthInvalid, fmt.Sprintf("no OAuth provider configured for %s", payload.App))
		}
		return nil, fmt.Errorf("connectors: find provider: %w", err)
	}
	clientSecret, err := s.crypto.Decrypt(provider.EncryptedSecret)
	if err != nil {
		return nil, fmt.Errorf("connectors: decrypt client secret: %w", err)
	}
	endpoint, err := oauthEndpointFor(payload.App)
	if err != nil {
		return nil, err
	}

	cfg := &oauth2.Config{
		ClientID:     provider.ClientID,
		ClientSecret: string(clientSecret),
		Endpoint:     endpoint,
		RedirectURL:  fmt.Sprintf("%s/oauth/callback", s.redirect),
		Scopes:       provider.Scopes,
	}
	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, apperr.Wrap(models.ErrAuthInvalid, "oauth code exchange failed", err)
	}

	tokenJSON, err := json.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("connectors: encode oauth token: %w", err)
	}
	encrypted, err := s.crypto.Encrypt(tokenJSON)
	if err != nil {
		return nil, fmt.Errorf("connectors: encrypt oauth token: %w", err)
	}

	connector := &models.Connector{
		WorkspaceID:     payload.Workspace,
		OwnerUserID:     payload.UserID,
		App:             payload.App,
		AuthType:        models.AuthOAuth,
		Status:          models.ConnectorConnected,
		EncryptedCreds:  encrypted,
		OAuthProviderID: provider.ID,
	}
	if err := s.CreateConnector(ctx, connector); err != nil {
		return nil, err
	}

	if err := s.scheduler.ScheduleIngestion(ctx, connector.WorkspaceID, connector.ExternalID, connector.OwnerUserID, payload.Scope); err != nil {
		log.Warn().Err(err).Str("connector", connector.ExternalID).Msg("failed to schedule ingestion after oauth completion")
	}
	return connector, nil
}

// AddServiceConnection persists service-account/API-key credentials
// for a connector and schedules ingestion. Microsoft service
// connections are validated up-front by obtaining an access token.
func (s *Service) AddServiceConnection(ctx context.Context, c *models.Connector, serviceKeyBlob []byte, subjectEmail string, whitelistedEmails []string, clientID, clientSecret, tenantID string, scope models.IngestionState) error {
	if c.App == models.AppMicrosoft {
		if err := s.validateMicrosoftServiceAccount(ctx, clientID, clientSecret, tenantID); err != nil {
			return apperr.Wrap(models.ErrAuthInvalid, "microsoft service account validation failed", err)
		}
	}

	encrypted, err := s.crypto.Encrypt(serviceKeyBlob)
	if err != nil {
		return fmt.Errorf("connectors: encrypt service key: %w", err)
	}
	c.EncryptedCreds = encrypted
	c.SubjectEmail = subjectEmail
	c.WhitelistedTo = whitelistedEmails
	c.AuthType = models.AuthServiceAccount
	c.Status = models.ConnectorConnected

	if c.ExternalID == "" {
		if err := s.CreateConnector(ctx, c); err != nil {
			return err
		}
	} else {
		if err := s.store.UpdateConnectorCredentials(ctx, c.ExternalID, encrypted, subjectEmail); err != nil {
			return fmt.Errorf("connectors: update credentials: %w", err)
		}
		if err := s.store.UpdateConnectorStatus(ctx, c.ExternalID, models.ConnectorConnected); err != nil {
			return fmt.Errorf("connectors: update status: %w", err)
		}
	}

	if err := s.scheduler.ScheduleIngestion(ctx, c.WorkspaceID, c.ExternalID, c.OwnerUserID, scope); err != nil {
		log.Warn().Err(err).Str("connector", c.ExternalID).Msg("failed to schedule ingestion after service connection")
	}
	return nil
}

// validateMicrosoftServiceAccount obtains an access token via the
// client-credentials grant, failing fast if the secret is wrong
// before anything is persisted.
func (s *Service) validateMicrosoftServiceAccount(ctx context.Context, clientID, clientSecret, tenantID string) error {
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     microsoft.AzureADEndpoint(tenantID).TokenURL,
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
	_, err := cfg.Token(ctx)
	return err
}

// DecryptCredentials decrypts a connector's opaque credential blob for
// callers that need the raw service-account/API-key payload (e.g. the
// tool registry connecting to an MCP server over an authenticated
// transport).
func (s *Service) DecryptCredentials(c *models.Connector) ([]byte, error) {
	return s.crypto.Decrypt(c.EncryptedCreds)
}

func setShortLivedCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}
