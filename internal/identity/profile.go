package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ProfileSource exposes the two profile lookups the display-name fallback
// chain composes: an authenticated first-party profile view and a generic
// record fetch from the actor's own repository.
type ProfileSource interface {
	// GetProfile returns the actor's display name from the first-party
	// profile view. An empty name with nil error means the actor has no
	// display name set.
	GetProfile(ctx context.Context, actor string) (string, error)

	// GetRecord fetches a record from the actor's repository and returns its
	// value undecoded.
	GetRecord(ctx context.Context, repo, collection, rkey string) (json.RawMessage, error)
}

// XRPCClient is a minimal XRPC query client. It covers only the two GET
// endpoints the resolver needs; the generated clients in the ecosystem
// cannot decode third-party lexicon records into local types.
type XRPCClient struct {
	Host   string
	Token  string
	Client *http.Client
}

func NewXRPCClient(host, token string, client *http.Client) *XRPCClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &XRPCClient{Host: host, Token: token, Client: client}
}

func (c *XRPCClient) GetProfile(ctx context.Context, actor string) (string, error) {
	body, err := c.query(ctx, "app.bsky.actor.getProfile", url.Values{"actor": {actor}})
	if err != nil {
		return "", err
	}
	var out struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decoding profile for %s: %w", actor, err)
	}
	return out.DisplayName, nil
}

func (c *XRPCClient) GetRecord(ctx context.Context, repo, collection, rkey string) (json.RawMessage, error) {
	body, err := c.query(ctx, "com.atproto.repo.getRecord", url.Values{
		"repo":       {repo},
		"collection": {collection},
		"rkey":       {rkey},
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding record response: %w", err)
	}
	if len(out.Value) == 0 {
		return nil, fmt.Errorf("record response has no value")
	}
	return out.Value, nil
}

func (c *XRPCClient) query(ctx context.Context, nsid string, params url.Values) ([]byte, error) {
	u := c.Host + "/xrpc/" + nsid
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", nsid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", nsid, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

var _ ProfileSource = (*XRPCClient)(nil)
