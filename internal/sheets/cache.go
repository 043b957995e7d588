package sheets

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/ivanoskov/sheets_bot/internal/model"
)

// CredentialSource yields a currently valid credential for a user, or
// nil when the user is not authenticated. The authorization manager
// satisfies this.
type CredentialSource interface {
	Credential(ctx context.Context, userID int64) (*model.Credential, error)
}

// ClientCache hands out authenticated API clients keyed by user. Every
// call revalidates the credential through the source first (which may
// refresh it), so a cached client never outlives its credential; a
// cache hit is only served when the bound access token is unchanged.
type ClientCache struct {
	mu      sync.Mutex
	clients map[int64]*Client

	creds   CredentialSource
	baseURL string
	log     zerolog.Logger
}

func NewClientCache(creds CredentialSource, log zerolog.Logger) *ClientCache {
	return &ClientCache{
		clients: make(map[int64]*Client),
		creds:   creds,
		baseURL: DefaultBaseURL,
		log:     log.With().Str("component", "sheets_cache").Logger(),
	}
}

// Client returns a ready client for the user, or nil when no valid
// credential is available (in which case any cached entry is evicted).
func (cc *ClientCache) Client(ctx context.Context, userID int64) (*Client, error) {
	cred, err := cc.creds.Credential(ctx, userID)
	if cred == nil {
		cc.ClearCache(userID)
		return nil, err
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()

	if cached, ok := cc.clients[userID]; ok && cached.boundToken == cred.AccessToken {
		return cached, nil
	}

	httpClient := oauth2.NewClient(
		context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: requestTimeout}),
		oauth2.StaticTokenSource(cred.Token()),
	)
	client := &Client{
		httpClient: httpClient,
		baseURL:    cc.baseURL,
		boundToken: cred.AccessToken,
	}
	cc.clients[userID] = client
	cc.log.Debug().Int64("user_id", userID).Msg("client built")
	return client, nil
}

// ClearCache evicts the user's cached client (used on logout and on
// authorization failures).
func (cc *ClientCache) ClearCache(userID int64) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	delete(cc.clients, userID)
}

// IsAuthenticated probes whether a client can currently be produced.
func (cc *ClientCache) IsAuthenticated(ctx context.Context, userID int64) bool {
	client, _ := cc.Client(ctx, userID)
	return client != nil
}

// SetBaseURL points the cache at a non-default API endpoint. Tests use
// it; production keeps DefaultBaseURL.
func (cc *ClientCache) SetBaseURL(baseURL string) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.baseURL = baseURL
	cc.clients = make(map[int64]*Client)
}
