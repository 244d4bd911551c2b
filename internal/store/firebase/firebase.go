// Package firebase stores predictions in a Firebase Realtime Database through
// its REST API.
package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"budgetsense/internal/core"
	"budgetsense/internal/store"

	goption "google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"
)

// OAuth scopes required by the Realtime Database REST API.
var scopes = []string{
	"https://www.googleapis.com/auth/firebase.database",
	"https://www.googleapis.com/auth/userinfo.email",
}

var (
	_ store.Store  = (*Client)(nil)
	_ store.Pinger = (*Client)(nil)
)

type Client struct {
	baseURL string
	path    string
	http    *http.Client
}

// New creates a client for databaseURL storing documents under path.
// credentialsFile is a service account key; when empty, Application Default
// Credentials are used.
func New(ctx context.Context, databaseURL, path, credentialsFile string) (*Client, error) {
	opts := []goption.ClientOption{goption.WithScopes(scopes...)}
	if credentialsFile != "" {
		credentialsJSON, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read firebase credentials: %w", err)
		}
		opts = append(opts, goption.WithCredentialsJSON(credentialsJSON))
	}

	hc, _, err := htransport.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firebase http client: %w", err)
	}

	slog.InfoContext(ctx, "Firebase Realtime Database client created",
		"database_url", databaseURL,
		"path", path,
		"credentials_file", credentialsFile != "")

	return NewWithHTTPClient(databaseURL, path, hc), nil
}

// NewWithHTTPClient creates a client that sends requests with hc as is.
func NewWithHTTPClient(databaseURL, path string, hc *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(databaseURL, "/"),
		path:    strings.Trim(path, "/"),
		http:    hc,
	}
}

func (c *Client) endpoint(id string, query url.Values) string {
	u := c.baseURL + "/" + c.path
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	u += ".json"
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// validKey rejects characters the Realtime Database forbids in keys.
func validKey(id string) error {
	if id == "" {
		return errors.New("prediction id is required")
	}
	if strings.ContainsAny(id, ".$#[]/") {
		return fmt.Errorf("prediction id %q contains characters not allowed in database keys", id)
	}
	return nil
}

// Save writes p to {path}/{id}.
func (c *Client) Save(ctx context.Context, p core.Prediction) (string, error) {
	if err := validKey(p.ID); err != nil {
		return "", err
	}
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal prediction: %w", err)
	}
	if err := c.do(ctx, http.MethodPut, c.endpoint(p.ID, nil), body, nil); err != nil {
		return "", fmt.Errorf("save prediction %s: %w", p.ID, err)
	}
	slog.DebugContext(ctx, "Prediction written to Firebase", "id", p.ID)
	return p.ID, nil
}

// All reads the whole {path} node. An empty node yields an empty map.
func (c *Client) All(ctx context.Context) (map[string]core.Prediction, error) {
	var out map[string]core.Prediction
	if err := c.do(ctx, http.MethodGet, c.endpoint("", nil), nil, &out); err != nil {
		return nil, fmt.Errorf("read predictions: %w", err)
	}
	if out == nil {
		out = make(map[string]core.Prediction)
	}
	for id, p := range out {
		if p.ID == "" {
			p.ID = id
			out[id] = p
		}
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id string) (core.Prediction, error) {
	if err := validKey(id); err != nil {
		return core.Prediction{}, err
	}
	var out *core.Prediction
	if err := c.do(ctx, http.MethodGet, c.endpoint(id, nil), nil, &out); err != nil {
		return core.Prediction{}, fmt.Errorf("read prediction %s: %w", id, err)
	}
	if out == nil {
		return core.Prediction{}, fmt.Errorf("prediction %s: %w", id, core.ErrNotFound)
	}
	if out.ID == "" {
		out.ID = id
	}
	return *out, nil
}

// Ping performs a shallow read of the predictions node.
func (c *Client) Ping(ctx context.Context) error {
	var discard json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.endpoint("", url.Values{"shallow": {"true"}}), nil, &discard); err != nil {
		return fmt.Errorf("ping firebase: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var fbErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(msg, &fbErr) == nil && fbErr.Error != "" {
			return fmt.Errorf("firebase returned %d: %s", resp.StatusCode, fbErr.Error)
		}
		return fmt.Errorf("firebase returned %d", resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
