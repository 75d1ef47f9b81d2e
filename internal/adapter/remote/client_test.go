package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
)

func TestClient_FetchSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "snapshot", r.URL.Query().Get("action"))
		assert.Equal(t, "abc", r.URL.Query().Get("key"))
		_, _ = io.WriteString(w, `{
			"users": [{"username": "caja1"}],
			"representatives": [{"id": "V-1", "total_accrued_debt": "180", "students": []}],
			"payments": [{"id": "POS-1", "amount": "50.00", "status": "VERIFIED"}],
			"fees": {"PRIMARY": "60"}
		}`)
	}))
	defer srv.Close()

	snap, err := NewClient(srv.URL+"?key=abc", time.Second).FetchSnapshot(context.Background())

	require.NoError(t, err)
	require.Len(t, snap.Representatives, 1)
	assert.True(t, snap.Representatives[0].TotalAccruedDebt.Equal(domain.MustAmount("180")))
	require.Len(t, snap.Payments, 1)
	assert.Equal(t, domain.StatusVerified, snap.Payments[0].Status)
	assert.JSONEq(t, `[{"username": "caja1"}]`, string(snap.Users))
	assert.True(t, snap.Fees[domain.Primary].Equal(domain.MustAmount("60")))
}

func TestClient_FetchPending(t *testing.T) {
	cases := map[string]string{
		"bare_array": `[{"Referencia": "001", "Monto": 25.5}]`,
		"envelope":   `{"status": "ok", "data": [{"Referencia": "001", "Monto": 25.5}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "pending", r.URL.Query().Get("action"))
				_, _ = io.WriteString(w, body)
			}))
			defer srv.Close()

			rows, err := NewClient(srv.URL, time.Second).FetchPending(context.Background())

			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "001", rows[0]["Referencia"])
			assert.Equal(t, json.Number("25.5"), rows[0]["Monto"])
		})
	}

	t.Run("empty_envelope", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"status": "ok"}`)
		}))
		defer srv.Close()

		rows, err := NewClient(srv.URL, time.Second).FetchPending(context.Background())
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestClient_Push(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		var got map[string]json.RawMessage
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		err := NewClient(srv.URL, time.Second).Push(context.Background(), domain.Snapshot{
			Payments: []domain.PaymentRecord{{ID: "POS-1"}},
		})

		require.NoError(t, err)
		assert.JSONEq(t, `"push"`, string(got["action"]))
		assert.Contains(t, string(got["state"]), "POS-1")
	})

	t.Run("server_error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		err := NewClient(srv.URL, time.Second).Push(context.Background(), domain.Snapshot{})
		assert.ErrorIs(t, err, ErrTransport)
	})
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	c := NewClient(endpoint, time.Second)
	_, err := c.FetchSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
	_, err = c.FetchPending(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestClient_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>maintenance</html>`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).FetchPending(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}
