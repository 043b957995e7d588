// Package auth owns the delegated-authorization lifecycle: issuing
// authorization URLs, exchanging callback codes, refreshing and revoking
// credentials, and keeping them encrypted at rest.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/ivanoskov/sheets_bot/internal/config"
	"github.com/ivanoskov/sheets_bot/internal/crypto"
	"github.com/ivanoskov/sheets_bot/internal/model"
	"github.com/ivanoskov/sheets_bot/internal/repository"
)

// Scopes requested from the provider. drive.file limits access to
// spreadsheets the user opened through this app; drive.readonly lets the
// bot list titles during /sheet validation.
var Scopes = []string{
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive.file",
	"https://www.googleapis.com/auth/drive.readonly",
}

const (
	// GoogleRevocationEndpoint accepts both access and refresh tokens.
	GoogleRevocationEndpoint = "https://oauth2.googleapis.com/revoke"

	defaultAuthURI  = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURI = "https://oauth2.googleapis.com/token"

	// expiryMargin triggers a proactive refresh for tokens that are
	// about to expire mid-operation.
	expiryMargin = time.Minute

	providerTimeout = 10 * time.Second
)

// Manager implements the delegated-authorization lifecycle against a
// single identity provider.
type Manager struct {
	oauth         *oauth2.Config
	revocationURL string
	repo          repository.Repository
	cipher        *crypto.Cipher
	states        *stateStore
	httpClient    *http.Client
	log           zerolog.Logger
	now           func() time.Time
}

// NewManager wires a Manager from an already-validated client
// registration. Registration problems are ConfigurationErrors raised by
// config.LoadClientSecrets before this point.
func NewManager(secrets *config.ClientSecrets, redirectURI string, repo repository.Repository, cipher *crypto.Cipher, log zerolog.Logger) *Manager {
	authURI := secrets.Web.AuthURI
	if authURI == "" {
		authURI = defaultAuthURI
	}
	tokenURI := secrets.Web.TokenURI
	if tokenURI == "" {
		tokenURI = defaultTokenURI
	}

	return &Manager{
		oauth: &oauth2.Config{
			ClientID:     secrets.Web.ClientID,
			ClientSecret: secrets.Web.ClientSecret,
			RedirectURL:  redirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURI,
				TokenURL: tokenURI,
			},
		},
		revocationURL: GoogleRevocationEndpoint,
		repo:          repo,
		cipher:        cipher,
		states:        newStateStore(time.Now),
		httpClient:    &http.Client{Timeout: providerTimeout},
		log:           log.With().Str("component", "auth").Logger(),
		now:           time.Now,
	}
}

// BeginAuthorization builds the provider consent URL for the user and
// records the single-use state token. Offline access plus forced consent
// guarantees a refresh token in the exchange.
func (m *Manager) BeginAuthorization(userID int64) (authURL, state string, err error) {
	state, err = m.states.Issue(userID)
	if err != nil {
		return "", "", err
	}

	authURL = m.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)

	m.log.Info().Int64("user_id", userID).Msg("authorization URL issued")
	return authURL, state, nil
}

// ExchangeCode consumes the state token, trades the authorization code
// for a credential and persists it encrypted. The state entry is gone
// after this call whether or not the exchange succeeds; a failed
// exchange requires a fresh BeginAuthorization.
func (m *Manager) ExchangeCode(ctx context.Context, state, code string) (int64, error) {
	userID, ok := m.states.Take(state)
	if !ok {
		return 0, ErrInvalidState
	}

	tok, err := m.oauth.Exchange(m.providerContext(ctx), code)
	if err != nil {
		m.log.Error().Err(err).Int64("user_id", userID).Msg("code exchange rejected")
		return 0, &ExchangeError{Err: err}
	}
	if tok.RefreshToken == "" {
		return 0, &ExchangeError{Err: errors.New("provider granted no refresh token")}
	}

	cred := &model.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenURI:     m.oauth.Endpoint.TokenURL,
		ClientID:     m.oauth.ClientID,
		Scopes:       Scopes,
		Expiry:       tok.Expiry,
	}
	if err := m.saveCredential(ctx, userID, cred); err != nil {
		return 0, err
	}

	m.log.Info().Int64("user_id", userID).Msg("authorization code exchanged")
	return userID, nil
}

// Credential returns a valid, non-expired credential for the user, or
// nil when none is available. Expired credentials are refreshed in
// place. A provider rejection of the refresh token deletes the stored
// credential (ErrRefreshRejected); a transient failure preserves it
// (TransientError).
func (m *Manager) Credential(ctx context.Context, userID int64) (*model.Credential, error) {
	cred, err := m.loadStored(ctx, userID)
	if err != nil || cred == nil {
		return nil, err
	}

	if !cred.ExpiresWithin(expiryMargin, m.now()) {
		return cred, nil
	}

	m.log.Info().Int64("user_id", userID).Msg("access token expired, refreshing")
	tok, err := m.oauth.TokenSource(m.providerContext(ctx), cred.Token()).Token()
	if err != nil {
		if isProviderRejection(err) {
			m.log.Warn().Err(err).Int64("user_id", userID).Msg("refresh rejected, revoking credential")
			m.Revoke(ctx, userID, cred.RefreshToken)
			return nil, ErrRefreshRejected
		}
		// Ambiguous or network failure: keep the stored credential so a
		// later retry can succeed, and leave a trail for follow-up.
		m.log.Error().Err(err).Int64("user_id", userID).Msg("transient refresh failure, credential preserved")
		return nil, &TransientError{Op: "refresh", Err: err}
	}

	cred.AccessToken = tok.AccessToken
	cred.Expiry = tok.Expiry
	if tok.RefreshToken != "" {
		cred.RefreshToken = tok.RefreshToken
	}
	if err := m.saveCredential(ctx, userID, cred); err != nil {
		// The refreshed credential is still usable for this call.
		m.log.Error().Err(err).Int64("user_id", userID).Msg("persisting refreshed credential failed")
	}
	return cred, nil
}

// Revoke best-effort revokes the refresh token with the provider, then
// unconditionally deletes the local credential. It returns true if
// either the network revocation or the local deletion succeeded; local
// deletion is the primary guarantee.
func (m *Manager) Revoke(ctx context.Context, userID int64, tokenOverride string) bool {
	token := tokenOverride
	if token == "" {
		if cred, err := m.loadStored(ctx, userID); err == nil && cred != nil {
			token = cred.RefreshToken
		}
	}

	revoked := false
	if token != "" {
		revoked = m.revokeRemote(ctx, userID, token)
	}

	deleted := true
	if err := m.repo.DeleteAuthToken(ctx, userID); err != nil {
		m.log.Error().Err(err).Int64("user_id", userID).Msg("deleting stored credential failed")
		deleted = false
	}

	return revoked || deleted
}

// IsAuthenticated reports whether the user currently holds a valid
// credential, refreshing if necessary.
func (m *Manager) IsAuthenticated(ctx context.Context, userID int64) bool {
	cred, _ := m.Credential(ctx, userID)
	return cred != nil
}

// loadStored loads and decrypts the stored credential without touching
// the provider. Undecryptable or malformed rows are deleted and treated
// as absent.
func (m *Manager) loadStored(ctx context.Context, userID int64) (*model.Credential, error) {
	row, err := m.repo.GetAuthToken(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading credential: %w", err)
	}
	if row == nil {
		return nil, nil
	}

	plaintext, err := m.cipher.Open(row.EncryptedPayload)
	if err != nil {
		m.log.Warn().Int64("user_id", userID).Msg("stored credential undecryptable, deleting row")
		m.deleteStored(ctx, userID)
		return nil, nil
	}

	var cred model.Credential
	if err := json.Unmarshal(plaintext, &cred); err != nil || cred.RefreshToken == "" {
		m.log.Warn().Int64("user_id", userID).Msg("stored credential malformed, deleting row")
		m.deleteStored(ctx, userID)
		return nil, nil
	}
	return &cred, nil
}

func (m *Manager) deleteStored(ctx context.Context, userID int64) {
	if err := m.repo.DeleteAuthToken(ctx, userID); err != nil {
		m.log.Error().Err(err).Int64("user_id", userID).Msg("deleting credential row failed")
	}
}

// saveCredential enforces the refresh-token invariant, encrypts the
// payload and upserts the row.
func (m *Manager) saveCredential(ctx context.Context, userID int64, cred *model.Credential) error {
	if cred.RefreshToken == "" {
		return errors.New("auth: refusing to persist credential without refresh token")
	}

	payload, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	sealed, err := m.cipher.Seal(payload)
	if err != nil {
		return err
	}

	row := &model.AuthToken{
		UserID:           userID,
		EncryptedPayload: sealed,
	}
	if !cred.Expiry.IsZero() {
		expiry := cred.Expiry
		row.Expiry = &expiry
	}
	if err := m.repo.SaveAuthToken(ctx, row); err != nil {
		return fmt.Errorf("persisting credential: %w", err)
	}
	return nil
}

func (m *Manager) revokeRemote(ctx context.Context, userID int64, token string) bool {
	ctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.revocationURL,
		strings.NewReader(url.Values{"token": {token}}.Encode()))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.log.Warn().Err(err).Int64("user_id", userID).Msg("remote revocation failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.log.Warn().Int("status", resp.StatusCode).Int64("user_id", userID).Msg("remote revocation not accepted")
		return false
	}
	m.log.Info().Int64("user_id", userID).Msg("token revoked with provider")
	return true
}

// providerContext injects the timeout-bounded HTTP client used for all
// token-endpoint traffic.
func (m *Manager) providerContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// isProviderRejection distinguishes an explicit 4xx token-endpoint
// response from network trouble. Anything ambiguous counts as transient
// so state is preserved.
func isProviderRejection(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}
	if re.Response == nil {
		return false
	}
	return re.Response.StatusCode >= 400 && re.Response.StatusCode < 500
}
