package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivanoskov/sheets_bot/internal/config"
	"github.com/ivanoskov/sheets_bot/internal/crypto"
	"github.com/ivanoskov/sheets_bot/internal/model"
	"github.com/ivanoskov/sheets_bot/internal/testutil"
)

// tokenEndpoint is a scripted provider token endpoint.
type tokenEndpoint struct {
	status  int
	body    string
	calls   atomic.Int32
	gotForm atomic.Pointer[url.Values]
}

func (te *tokenEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	te.calls.Add(1)
	_ = r.ParseForm()
	form := r.PostForm
	te.gotForm.Store(&form)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(te.status)
	fmt.Fprint(w, te.body)
}

func grantedToken(refresh string) string {
	body := `{"access_token":"at-1","token_type":"Bearer","expires_in":3600`
	if refresh != "" {
		body += `,"refresh_token":"` + refresh + `"`
	}
	return body + `}`
}

func newTestManager(t *testing.T, endpoint *tokenEndpoint) (*Manager, *testutil.MemoryRepository) {
	t.Helper()

	server := httptest.NewServer(endpoint)
	t.Cleanup(server.Close)

	key := make([]byte, 32)
	cipher, err := crypto.NewCipher(key)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	secrets := &config.ClientSecrets{}
	secrets.Web.ClientID = "client-id"
	secrets.Web.ClientSecret = "client-secret"
	secrets.Web.AuthURI = server.URL + "/auth"
	secrets.Web.TokenURI = server.URL + "/token"

	repo := testutil.NewMemoryRepository()
	m := NewManager(secrets, "http://localhost:8000/oauth2callback", repo, cipher, zerolog.Nop())
	m.revocationURL = server.URL + "/revoke"
	return m, repo
}

func seedCredential(t *testing.T, m *Manager, userID int64, expiry time.Time) {
	t.Helper()
	cred := &model.Credential{
		AccessToken:  "at-old",
		RefreshToken: "rt-old",
		TokenURI:     m.oauth.Endpoint.TokenURL,
		ClientID:     m.oauth.ClientID,
		Scopes:       Scopes,
		Expiry:       expiry,
	}
	if err := m.saveCredential(context.Background(), userID, cred); err != nil {
		t.Fatalf("saveCredential: %v", err)
	}
}

func TestBeginAuthorizationURL(t *testing.T) {
	m, _ := newTestManager(t, &tokenEndpoint{status: 200, body: grantedToken("rt")})

	authURL, state, err := m.BeginAuthorization(42)
	if err != nil {
		t.Fatalf("BeginAuthorization: %v", err)
	}

	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parsing auth URL: %v", err)
	}
	q := parsed.Query()
	if q.Get("state") != state {
		t.Errorf("state param = %q, want %q", q.Get("state"), state)
	}
	if q.Get("access_type") != "offline" {
		t.Errorf("access_type = %q, want offline", q.Get("access_type"))
	}
	if q.Get("prompt") != "consent" {
		t.Errorf("prompt = %q, want consent", q.Get("prompt"))
	}
	if !strings.Contains(q.Get("scope"), "spreadsheets") {
		t.Errorf("scope %q lacks spreadsheets", q.Get("scope"))
	}
}

func TestExchangeCodeSuccess(t *testing.T) {
	m, repo := newTestManager(t, &tokenEndpoint{status: 200, body: grantedToken("rt-new")})

	_, state, err := m.BeginAuthorization(42)
	if err != nil {
		t.Fatalf("BeginAuthorization: %v", err)
	}

	userID, err := m.ExchangeCode(context.Background(), state, "auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if userID != 42 {
		t.Fatalf("userID = %d, want 42", userID)
	}
	if !repo.HasToken(42) {
		t.Fatal("no credential persisted after exchange")
	}

	cred, err := m.Credential(context.Background(), 42)
	if err != nil || cred == nil {
		t.Fatalf("Credential after exchange = (%v, %v)", cred, err)
	}
	if cred.RefreshToken != "rt-new" {
		t.Errorf("RefreshToken = %q, want rt-new", cred.RefreshToken)
	}
}

func TestExchangeCodeUnknownState(t *testing.T) {
	m, _ := newTestManager(t, &tokenEndpoint{status: 200, body: grantedToken("rt")})

	if _, err := m.ExchangeCode(context.Background(), "bogus", "code"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("want ErrInvalidState, got %v", err)
	}
}

func TestExchangeCodeStateSingleUse(t *testing.T) {
	m, _ := newTestManager(t, &tokenEndpoint{status: 200, body: grantedToken("rt")})

	_, state, _ := m.BeginAuthorization(42)
	if _, err := m.ExchangeCode(context.Background(), state, "code"); err != nil {
		t.Fatalf("first exchange: %v", err)
	}
	if _, err := m.ExchangeCode(context.Background(), state, "code"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second exchange: want ErrInvalidState, got %v", err)
	}
}

func TestExchangeCodeWithoutRefreshToken(t *testing.T) {
	m, repo := newTestManager(t, &tokenEndpoint{status: 200, body: grantedToken("")})

	_, state, _ := m.BeginAuthorization(42)
	_, err := m.ExchangeCode(context.Background(), state, "code")

	var exchErr *ExchangeError
	if !errors.As(err, &exchErr) {
		t.Fatalf("want ExchangeError, got %v", err)
	}
	if repo.HasToken(42) {
		t.Fatal("credential persisted despite missing refresh token")
	}
}

func TestExchangeCodeProviderRejection(t *testing.T) {
	m, repo := newTestManager(t, &tokenEndpoint{status: 400, body: `{"error":"invalid_grant"}`})

	_, state, _ := m.BeginAuthorization(42)
	_, err := m.ExchangeCode(context.Background(), state, "bad-code")

	var exchErr *ExchangeError
	if !errors.As(err, &exchErr) {
		t.Fatalf("want ExchangeError, got %v", err)
	}
	if repo.HasToken(42) {
		t.Fatal("credential persisted despite failed exchange")
	}
}

func TestCredentialFreshTokenSkipsProvider(t *testing.T) {
	endpoint := &tokenEndpoint{status: 500, body: `boom`}
	m, _ := newTestManager(t, endpoint)
	seedCredential(t, m, 42, time.Now().Add(time.Hour))

	cred, err := m.Credential(context.Background(), 42)
	if err != nil || cred == nil {
		t.Fatalf("Credential = (%v, %v)", cred, err)
	}
	if cred.AccessToken != "at-old" {
		t.Errorf("AccessToken = %q, want at-old", cred.AccessToken)
	}
	if endpoint.calls.Load() != 0 {
		t.Errorf("provider contacted %d times for a fresh token", endpoint.calls.Load())
	}
}

func TestCredentialRefreshesExpiredToken(t *testing.T) {
	endpoint := &tokenEndpoint{status: 200, body: grantedToken("")}
	m, repo := newTestManager(t, endpoint)
	seedCredential(t, m, 42, time.Now().Add(-time.Hour))

	cred, err := m.Credential(context.Background(), 42)
	if err != nil || cred == nil {
		t.Fatalf("Credential = (%v, %v)", cred, err)
	}
	if cred.AccessToken != "at-1" {
		t.Errorf("AccessToken = %q, want refreshed at-1", cred.AccessToken)
	}
	if cred.RefreshToken != "rt-old" {
		t.Errorf("RefreshToken = %q, want preserved rt-old", cred.RefreshToken)
	}
	if !repo.HasToken(42) {
		t.Fatal("refreshed credential not persisted")
	}

	form := endpoint.gotForm.Load()
	if form == nil || form.Get("grant_type") != "refresh_token" {
		t.Errorf("provider did not receive a refresh_token grant: %v", form)
	}
}

func TestCredentialRefreshRejectedDeletesRow(t *testing.T) {
	endpoint := &tokenEndpoint{status: 400, body: `{"error":"invalid_grant"}`}
	m, repo := newTestManager(t, endpoint)
	seedCredential(t, m, 42, time.Now().Add(-time.Hour))

	cred, err := m.Credential(context.Background(), 42)
	if !errors.Is(err, ErrRefreshRejected) {
		t.Fatalf("want ErrRefreshRejected, got (%v, %v)", cred, err)
	}
	if repo.HasToken(42) {
		t.Fatal("rejected credential still stored")
	}
}

func TestCredentialTransientFailurePreservesRow(t *testing.T) {
	endpoint := &tokenEndpoint{status: 500, body: `upstream down`}
	m, repo := newTestManager(t, endpoint)
	seedCredential(t, m, 42, time.Now().Add(-time.Hour))

	cred, err := m.Credential(context.Background(), 42)
	var transient *TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("want TransientError, got (%v, %v)", cred, err)
	}
	if !repo.HasToken(42) {
		t.Fatal("credential deleted on a transient failure")
	}
}

func TestCredentialUndecryptableRowDeleted(t *testing.T) {
	m, repo := newTestManager(t, &tokenEndpoint{status: 200, body: grantedToken("rt")})

	err := repo.SaveAuthToken(context.Background(), &model.AuthToken{
		UserID:           42,
		EncryptedPayload: []byte("not a sealed blob"),
	})
	if err != nil {
		t.Fatalf("SaveAuthToken: %v", err)
	}

	cred, err := m.Credential(context.Background(), 42)
	if cred != nil || err != nil {
		t.Fatalf("Credential = (%v, %v), want (nil, nil)", cred, err)
	}
	if repo.HasToken(42) {
		t.Fatal("undecryptable row not deleted")
	}
}

func TestCredentialAbsent(t *testing.T) {
	m, _ := newTestManager(t, &tokenEndpoint{status: 200, body: grantedToken("rt")})

	cred, err := m.Credential(context.Background(), 42)
	if cred != nil || err != nil {
		t.Fatalf("Credential = (%v, %v), want (nil, nil)", cred, err)
	}
	if m.IsAuthenticated(context.Background(), 42) {
		t.Fatal("IsAuthenticated true with no credential")
	}
}

func TestRevokeDeletesLocallyEvenWhenProviderFails(t *testing.T) {
	// The scripted endpoint serves /revoke too; 500 means the provider
	// refused the revocation.
	endpoint := &tokenEndpoint{status: 500, body: `boom`}
	m, repo := newTestManager(t, endpoint)
	seedCredential(t, m, 42, time.Now().Add(time.Hour))

	if !m.Revoke(context.Background(), 42, "") {
		t.Fatal("Revoke = false, want true from local deletion")
	}
	if repo.HasToken(42) {
		t.Fatal("credential row survived revocation")
	}
}

func TestRevokeRemoteSuccess(t *testing.T) {
	endpoint := &tokenEndpoint{status: 200, body: `{}`}
	m, repo := newTestManager(t, endpoint)
	seedCredential(t, m, 42, time.Now().Add(time.Hour))

	if !m.Revoke(context.Background(), 42, "") {
		t.Fatal("Revoke = false")
	}
	if repo.HasToken(42) {
		t.Fatal("credential row survived revocation")
	}

	form := endpoint.gotForm.Load()
	if form == nil || form.Get("token") != "rt-old" {
		t.Errorf("provider did not receive the refresh token: %v", form)
	}
}
