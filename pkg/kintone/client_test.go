package kintone

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-pipeline/internal/resilience"
)

func TestCreateRecord(t *testing.T) {
	var gotToken, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Cybozu-API-Token")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]string{"id": "101", "revision": "1"})
	}))
	defer srv.Close()

	c := NewClient("example.cybozu.com", "secret", WithBaseURL(srv.URL))
	id, err := c.CreateRecord(context.Background(), "7", Record{
		"vendor": {Value: "Acme Corporation"},
		"amount": {Value: "48400"},
	})
	require.NoError(t, err)
	assert.Equal(t, "101", id)
	assert.Equal(t, "secret", gotToken)
	assert.Equal(t, "/k/v1/record.json", gotPath)
	assert.Equal(t, "7", gotBody["app"])

	record, ok := gotBody["record"].(map[string]any)
	require.True(t, ok)
	vendor, ok := record["vendor"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Acme Corporation", vendor["value"])
}

func TestCreateRecord_FatalStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"CB_VA01","message":"missing required field"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("example.cybozu.com", "secret", WithBaseURL(srv.URL))
	_, err := c.CreateRecord(context.Background(), "7", Record{})
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
	assert.Contains(t, err.Error(), "CB_VA01")
}

func TestCreateRecord_TransientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("example.cybozu.com", "secret", WithBaseURL(srv.URL))
	_, err := c.CreateRecord(context.Background(), "7", Record{})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))

	var te *resilience.TransientError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusTooManyRequests, te.StatusCode)
}

func TestCreateRecord_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient("example.cybozu.com", "secret", WithBaseURL(srv.URL))
	_, err := c.CreateRecord(context.Background(), "7", Record{})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestUpdateRecord(t *testing.T) {
	var gotMethod string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]string{"revision": "2"})
	}))
	defer srv.Close()

	c := NewClient("example.cybozu.com", "secret", WithBaseURL(srv.URL))
	err := c.UpdateRecord(context.Background(), "7", "101", Record{"vendor": {Value: "Updated"}})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "101", gotBody["id"])
}

func TestListRecords_Pages(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("query"))
		assert.Equal(t, "7", r.URL.Query().Get("app"))

		// First page full, second page short.
		count := listPageSize
		if len(queries) > 1 {
			count = 2
		}
		records := make([]Record, count)
		for i := range records {
			records[i] = Record{"code": {Value: fmt.Sprintf("C%d", i)}}
		}
		json.NewEncoder(w).Encode(map[string]any{"records": records})
	}))
	defer srv.Close()

	c := NewClient("example.cybozu.com", "secret", WithBaseURL(srv.URL))
	records, err := c.ListRecords(context.Background(), "7", []string{"code", "name"})
	require.NoError(t, err)
	assert.Len(t, records, listPageSize+2)
	require.Len(t, queries, 2)
	assert.Equal(t, "limit 500 offset 0", queries[0])
	assert.Equal(t, "limit 500 offset 500", queries[1])
}

func TestNewClient_DerivesBaseURL(t *testing.T) {
	c := NewClient("example.cybozu.com", "t").(*httpClient)
	assert.Equal(t, "https://example.cybozu.com", c.baseURL)
}

func TestFieldStringValue(t *testing.T) {
	assert.Equal(t, "x", Field{Value: "x"}.StringValue())
	assert.Equal(t, "", Field{Value: 3}.StringValue())
	assert.Equal(t, "", Field{}.StringValue())
}
