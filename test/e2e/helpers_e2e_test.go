//go:build e2e

package e2e_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// getenv returns the value of the environment variable k or def if empty.
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

type client struct {
	base  string
	owner string
	token string
	hc    *http.Client
}

func newClient() *client {
	return &client{
		base:  getenv("BASE_URL", "http://localhost:8080"),
		owner: getenv("E2E_OWNER", "e2e-user"),
		token: os.Getenv("E2E_TOKEN"),
		hc:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *client) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else {
		req.Header.Set("X-User-Id", c.owner)
	}
	resp, err := c.hc.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

type statusResp struct {
	Success bool                   `json:"success"`
	Status  string                 `json:"status"`
	Data    map[string]interface{} `json:"data"`
	Error   *string                `json:"error"`
}

func (c *client) waitTerminal(t *testing.T, id string, limit time.Duration) statusResp {
	t.Helper()
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) {
		var st statusResp
		code := c.do(t, http.MethodGet, "/interview?id="+id, nil, &st)
		require.Equal(t, http.StatusOK, code)
		if st.Status == "COMPLETED" || st.Status == "ERROR" {
			return st
		}
		time.Sleep(2 * time.Second)
	}
	t.Fatalf("interview %s did not reach a terminal state within %s", id, limit)
	return statusResp{}
}
