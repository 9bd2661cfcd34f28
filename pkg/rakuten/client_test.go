package rakuten

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	tokenCalls  atomic.Int32
	searchCalls atomic.Int32
	search      http.HandlerFunc
}

func newFakeAPI(t *testing.T, search http.HandlerFunc) (*fakeAPI, *Client) {
	t.Helper()
	return newFakeAPIWithExpiry(t, 7200, search)
}

func newFakeAPIWithExpiry(t *testing.T, expiresIn int, search http.HandlerFunc) (*fakeAPI, *Client) {
	t.Helper()
	api := &fakeAPI{search: search}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		api.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "id" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = r.ParseForm()
		if r.Form.Get("grant_type") != "client_credentials" || r.Form.Get("scope") != "PRODUCTION" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"access_token":"tok-1","token_type":"bearer","expires_in":%d}`, expiresIn)
	})
	mux.HandleFunc("/productsearch/1.0", func(w http.ResponseWriter, r *http.Request) {
		api.searchCalls.Add(1)
		api.search(w, r)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{ClientID: "id", ClientSecret: "secret", BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	return api, client
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_MissingCredentials(t *testing.T) {
	_, err := NewClient(Config{ClientID: "id"}, nil)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestSearchProducts_SendsTokenAndParams(t *testing.T) {
	api, client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.Header.Get("Authorization") != "Bearer tok-1" || q.Get("token") != "tok-1" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if q.Get("mid") != "42" || q.Get("instock") != "1" || q.Get("pagesize") != "5" || q.Get("keyword") != "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeJSON(w, SearchResponse{
			Products:   []Product{{MID: "42", ProductName: "Teddy", Price: "9.99"}},
			TotalPages: 1,
		})
	})

	inStock := true
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		resp, err := client.SearchProducts(ctx, "42", SearchOptions{PageSize: 5, InStock: &inStock})
		require.NoError(t, err)
		require.Len(t, resp.Products, 1)
		assert.Equal(t, "Teddy", resp.Products[0].ProductName)
	}
	assert.Equal(t, int32(1), api.tokenCalls.Load(), "令牌被缓存")
}

func TestSearchProducts_ShortLivedTokenRefetched(t *testing.T) {
	api, client := newFakeAPIWithExpiry(t, 3000, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, SearchResponse{Products: []Product{{MID: "42", ProductName: "Teddy"}}, TotalPages: 1})
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := client.SearchProducts(ctx, "42", SearchOptions{})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), api.searchCalls.Load())
	assert.Equal(t, int32(3), api.tokenCalls.Load(), "有效期不足 1 小时的令牌每次重新获取")
}

func TestSearchProducts_ErrorBodyTruncatedByRune(t *testing.T) {
	body := strings.Repeat("日", previewLimit+100)
	_, client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(body))
	})

	_, err := client.SearchProducts(context.Background(), "42", SearchOptions{})
	require.Error(t, err)
	msg := err.Error()
	assert.True(t, utf8.ValidString(msg))
	assert.True(t, strings.HasSuffix(msg, "..."))
	assert.Contains(t, msg, strings.Repeat("日", previewLimit)+"...")
	assert.NotContains(t, msg, strings.Repeat("日", previewLimit+1))
}

func TestSearchProducts_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantErr     error
	}{
		{"401 未批准", http.StatusUnauthorized, "text/plain", "denied", ErrNotApproved},
		{"XML Invalid token", http.StatusOK, "application/xml", "<error>Invalid token</error>", ErrNotApproved},
		{"XML 错误码 718619", http.StatusOK, "text/html", "<fault><code>718619</code></fault>", ErrNotApproved},
		{"XML No token", http.StatusOK, "application/xml", "<error>No token specified</error>", ErrNoToken},
		{"XML 错误码 718614", http.StatusOK, "text/plain", "  <e>718614</e>", ErrNoToken},
		{"其他 XML", http.StatusOK, "application/xml", "<result/>", ErrUnexpectedXML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.SearchProducts(context.Background(), "42", SearchOptions{})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSearchProducts_ServerErrorAndBadJSON(t *testing.T) {
	_, client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("keyword") == "boom" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("internal"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"products": [`))
	})

	_, err := client.SearchProducts(context.Background(), "42", SearchOptions{Keyword: "boom"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500 - internal")

	_, err = client.SearchProducts(context.Background(), "42", SearchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "解析 Rakuten 响应失败")
}

func pagedHandler(totalPages, perPage int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		products := make([]Product, perPage)
		for i := range products {
			products[i] = Product{MID: "42", ProductName: fmt.Sprintf("p%d-%d", page, i)}
		}
		writeJSON(w, SearchResponse{Products: products, TotalPages: totalPages, Page: page})
	}
}

func TestGetAllProducts(t *testing.T) {
	t.Run("翻到最后一页", func(t *testing.T) {
		api, client := newFakeAPI(t, pagedHandler(3, 2))
		all, err := client.GetAllProducts(context.Background(), "42", ListOptions{})
		require.NoError(t, err)
		assert.Len(t, all, 6)
		assert.Equal(t, int32(3), api.searchCalls.Load())
	})

	t.Run("达到上限后截断", func(t *testing.T) {
		api, client := newFakeAPI(t, pagedHandler(10, 2))
		all, err := client.GetAllProducts(context.Background(), "42", ListOptions{MaxProducts: 3})
		require.NoError(t, err)
		assert.Len(t, all, 3)
		assert.Equal(t, "p2-0", all[2].ProductName)
		assert.Equal(t, int32(2), api.searchCalls.Load())
	})

	t.Run("空页停止", func(t *testing.T) {
		api, client := newFakeAPI(t, pagedHandler(10, 0))
		all, err := client.GetAllProducts(context.Background(), "42", ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, all)
		assert.Equal(t, int32(1), api.searchCalls.Load())
	})
}

func TestGetMerchantInfo(t *testing.T) {
	_, client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("mid") == "0" {
			writeJSON(w, SearchResponse{})
			return
		}
		writeJSON(w, SearchResponse{Products: []Product{{
			MID: "42", MerchantName: "Toy Land", MerchantCategoryPath: "Toys~~Games",
		}}})
	})

	info, err := client.GetMerchantInfo(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "Toy Land", info.MerchantName)
	assert.Equal(t, "Toys~~Games", info.MerchantCategoryPath)

	_, err = client.GetMerchantInfo(context.Background(), "0")
	assert.ErrorIs(t, err, ErrNoProducts)
}
