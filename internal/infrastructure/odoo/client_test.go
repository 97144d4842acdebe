package odoo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/odoosync/internal/domain/ordersync"
)

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:   "valid config",
			config: &Config{BaseURL: "https://erp.example.com/", Database: "prod", Login: "api", Password: "secret"},
		},
		{
			name:    "missing base url",
			config:  &Config{Database: "prod", Login: "api", Password: "secret"},
			wantErr: true,
		},
		{
			name:    "invalid base url",
			config:  &Config{BaseURL: "not a url", Database: "prod", Login: "api", Password: "secret"},
			wantErr: true,
		},
		{
			name:    "missing password",
			config:  &Config{BaseURL: "https://erp.example.com", Database: "prod", Login: "api"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://erp.example.com", tt.config.BaseURL)
			assert.Equal(t, DefaultSendTimeout, tt.config.SendTimeout)
			assert.Equal(t, DefaultRequestTimeout, tt.config.RequestTimeout)
			assert.Equal(t, DefaultTokenTTL, tt.config.TokenTTL)
			assert.Equal(t, "https://erp.example.com/api/sale.order/cancel_order", tt.config.URL(EndpointCancelOrder))
		})
	}
}

// ---------------------------------------------------------------------------
// Client Tests
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&Config{
		BaseURL:    server.URL,
		Database:   "prod",
		Login:      "api",
		Password:   "secret",
		LocationID: 8,
	})
	require.NoError(t, err)
	return client
}

func TestClient_Authenticate(t *testing.T) {
	t.Run("returns token", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/"+EndpointAuthenticate, r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Empty(t, r.Header.Get("token"))

			var body authRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "prod", body.Params.DB)
			assert.Equal(t, "api", body.Params.Login)
			assert.Equal(t, "secret", body.Params.Password)

			_, _ = w.Write([]byte(`{"result":{"token":"tok-1"}}`))
		})

		token, err := client.Authenticate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", token)
	})

	t.Run("reply without token", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":{"message":"Access Denied"}}`))
		})

		_, err := client.Authenticate(context.Background())
		assert.ErrorIs(t, err, ordersync.ErrAuthFailed)
		assert.NotErrorIs(t, err, ordersync.ErrTransport)
	})
}

func TestClient_SendOrders(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+EndpointAddUpdateOrder, r.URL.Path)
		assert.Equal(t, "tok-1", r.Header.Get("token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body ordersync.SendOrdersRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if assert.Len(t, body.Orders, 1) {
			assert.Equal(t, int64(101), body.Orders[0].WooCommerceID)
		}

		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"result":{"Code":500}}`))
	})

	result := client.SendOrders(context.Background(), "tok-1", []ordersync.OrderPayload{{WooCommerceID: 101}})

	assert.False(t, result.Failed(), "HTTP errors are not transport failures")
	assert.Equal(t, http.StatusInternalServerError, result.StatusCode)
	assert.JSONEq(t, `{"result":{"Code":500}}`, string(result.Body))
}

func TestClient_CancelAndValidate(t *testing.T) {
	var paths []string
	var bodies []map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		_, _ = w.Write([]byte(`{"result":{"Code":200}}`))
	})

	ctx := context.Background()
	modified := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)

	assert.Equal(t, http.StatusOK, client.CancelOrder(ctx, "tok", 555).StatusCode)
	assert.Equal(t, http.StatusOK, client.ValidateDelivery(ctx, "tok", 555, modified).StatusCode)

	require.Len(t, bodies, 2)
	assert.Equal(t, []string{"/" + EndpointCancelOrder, "/" + EndpointValidateDelivery}, paths)

	cancelRef := bodies[0]["orders"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(555), cancelRef["RequestID"])
	assert.NotContains(t, cancelRef, "modified_date")

	validateRef := bodies[1]["orders"].([]any)[0].(map[string]any)
	assert.Equal(t, "2024-06-01 10:30:00", validateRef["modified_date"])
}

func TestClient_GetStock(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body stockRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "SKU-1", body.DefaultCode)
		assert.Equal(t, int64(8), body.LocationID)
		_, _ = w.Write([]byte(`{"result":{"Data":[{"available_quantity":3}]}}`))
	})

	result := client.GetStock(context.Background(), "tok", "SKU-1")
	assert.Equal(t, http.StatusOK, result.StatusCode)
}

func TestClient_TransportFailures(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer server.Close()

		client, err := NewClient(&Config{
			BaseURL:     server.URL,
			Database:    "prod",
			Login:       "api",
			Password:    "secret",
			SendTimeout: 50 * time.Millisecond,
		})
		require.NoError(t, err)

		result := client.SendOrders(context.Background(), "tok", nil)
		require.True(t, result.Failed())
		assert.Equal(t, CodeTimeout, result.Err.Code)
		assert.ErrorIs(t, result.Err, ordersync.ErrTransport)
	})

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		client, err := NewClient(&Config{BaseURL: url, Database: "prod", Login: "api", Password: "secret"})
		require.NoError(t, err)

		result := client.CancelOrder(context.Background(), "tok", 1)
		require.True(t, result.Failed())
		assert.Equal(t, CodeRequestFailed, result.Err.Code)

		_, authErr := client.Authenticate(context.Background())
		assert.ErrorIs(t, authErr, ordersync.ErrTransport)
	})
}
