package testhttp

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

// DoGet sends GET request to the url and decodes JSON response into "response".
func DoGet(t *testing.T, url string, response any) *http.Response {
	t.Helper()
	httpRes, err := http.Get(url) // #nosec G107
	require.NoError(t, err)
	defer func() {
		_ = httpRes.Body.Close()
	}()
	resBytes, err := io.ReadAll(httpRes.Body)
	require.NoError(t, err)
	t.Logf("GET %s response: %s", url, resBytes)
	require.NoError(t, json.NewDecoder(bytes.NewReader(resBytes)).Decode(response))
	return httpRes
}

// DoPost sends body with given content type to the url and decodes JSON response into "res".
func DoPost(t *testing.T, url, contentType string, body []byte, res any) *http.Response {
	t.Helper()
	httpRes, err := http.Post(url, contentType, bytes.NewReader(body)) // #nosec G107
	require.NoError(t, err)
	defer func() {
		_ = httpRes.Body.Close()
	}()
	resBytes, err := io.ReadAll(httpRes.Body)
	require.NoError(t, err)
	t.Logf("POST %s response: %s", url, resBytes)
	require.NoError(t, json.NewDecoder(bytes.NewReader(resBytes)).Decode(res))
	return httpRes
}
