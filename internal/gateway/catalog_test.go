package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arthurstore/storefront/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/products", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"productId": 1, "name": "Laptop", "description": "A laptop", "stock": 10, "price": 999900, "urlImage": "http://img/laptop.png"},
			{"productId": 2, "name": "Mouse", "description": "A mouse", "stock": 50, "price": 29900, "urlImage": "http://img/mouse.png"}
		]`))
	}))
	defer server.Close()

	client := NewCatalogClient(server.URL)
	items, err := client.FetchCatalog(context.Background())
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, models.Item{
		ID:          1,
		Name:        "Laptop",
		Description: "A laptop",
		Stock:       10,
		Price:       999900,
		ImageURL:    "http://img/laptop.png",
	}, items[0])
}

func TestFetchCatalogServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewCatalogClient(server.URL)
	items, err := client.FetchCatalog(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Nil(t, items)
}

func TestFetchCatalogTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := NewCatalogClient(server.URL)
	_, err := client.FetchCatalog(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestFetchCatalogMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not": "an array"}`))
	}))
	defer server.Close()

	client := NewCatalogClient(server.URL)
	_, err := client.FetchCatalog(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadPayload)
	assert.NotErrorIs(t, err, ErrRequestFailed)
}
