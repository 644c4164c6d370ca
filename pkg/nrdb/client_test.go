package nrdb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nrqlResponse(results []map[string]any, nextCursor *string) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"actor": map[string]any{
				"account": map[string]any{
					"nrql": map[string]any{
						"results":    results,
						"nextCursor": nextCursor,
					},
				},
			},
		},
	}
}

func TestQuery(t *testing.T) {
	var gotReq graphQLRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-api-key", r.Header.Get("Api-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(nrqlResponse([]map[string]any{{"count": 2}}, nil))
	}))
	defer srv.Close()

	client, err := NewClient("test-api-key", "123456", WithEndpoint(srv.URL))
	require.NoError(t, err)

	rows, err := client.Query(context.Background(), "SELECT count(*) FROM KafkaBrokerSample")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(2), rows[0]["count"])

	assert.Equal(t, float64(123456), gotReq.Variables["acct"])
	assert.Equal(t, "SELECT count(*) FROM KafkaBrokerSample", gotReq.Variables["nrql"])
}

func TestQueryFollowsCursor(t *testing.T) {
	var cursors []any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		cursors = append(cursors, req.Variables["cursor"])

		if req.Variables["cursor"] == nil {
			next := "page-2"
			json.NewEncoder(w).Encode(nrqlResponse([]map[string]any{{"n": 1}}, &next))
			return
		}
		json.NewEncoder(w).Encode(nrqlResponse([]map[string]any{{"n": 2}}, nil))
	}))
	defer srv.Close()

	client, err := NewClient("k", "1", WithEndpoint(srv.URL))
	require.NoError(t, err)

	rows, err := client.Query(context.Background(), "SELECT * FROM Log")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, float64(1), rows[0]["n"])
	assert.Equal(t, float64(2), rows[1]["n"])
	assert.Equal(t, []any{nil, "page-2"}, cursors)
}

func TestQueryBackendErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{"message": "NRQL syntax error"}},
		})
	}))
	defer srv.Close()

	client, err := NewClient("k", "1", WithEndpoint(srv.URL))
	require.NoError(t, err)

	_, err = client.Query(context.Background(), "SELEKT oops")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NRQL syntax error")
}

func TestQueryHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	client, err := NewClient("k", "1", WithEndpoint(srv.URL))
	require.NoError(t, err)

	_, err = client.Query(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("", "123")
	assert.Error(t, err)

	_, err = NewClient("key", "not-a-number")
	assert.Error(t, err)
}

func TestRegionEndpoints(t *testing.T) {
	us, err := NewClient("k", "1")
	require.NoError(t, err)
	assert.Equal(t, endpointUS, us.endpoint)

	eu, err := NewClient("k", "1", WithRegion("eu"))
	require.NoError(t, err)
	assert.Equal(t, endpointEU, eu.endpoint)
}
