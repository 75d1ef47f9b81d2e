package middleware

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ojedapedro/colegiopay/internal/core/security"
)

func TestProtected(t *testing.T) {
	cashierKey, cashierHash, err := security.GenerateAPIKey()
	require.NoError(t, err)
	reviewerKey, reviewerHash, err := security.GenerateAPIKey()
	require.NoError(t, err)
	keys := security.NewKeyring([]string{cashierHash}, []string{reviewerHash})

	app := fiber.New()
	app.Post("/pay", Protected(keys, security.RoleCashier), func(c *fiber.Ctx) error {
		return c.SendString(string(c.Locals(RoleKey).(security.Role)))
	})
	app.Post("/review", Protected(keys, security.RoleReviewer), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	cases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing", "/pay", "", http.StatusUnauthorized},
		{"bad_format", "/pay", "Token " + cashierKey, http.StatusUnauthorized},
		{"unknown_key", "/pay", "Bearer cp_live_nope", http.StatusUnauthorized},
		{"cashier_pays", "/pay", "Bearer " + cashierKey, http.StatusOK},
		{"reviewer_pays", "/pay", "Bearer " + reviewerKey, http.StatusOK},
		{"cashier_cannot_review", "/review", "Bearer " + cashierKey, http.StatusForbidden},
		{"reviewer_reviews", "/review", "Bearer " + reviewerKey, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			resp, err := app.Test(req)

			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}

	t.Run("disabled", func(t *testing.T) {
		open := fiber.New()
		open.Post("/review", Protected(nil, security.RoleReviewer), func(c *fiber.Ctx) error {
			return c.SendStatus(http.StatusOK)
		})
		resp, err := open.Test(httptest.NewRequest(http.MethodPost, "/review", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestIdempotency(t *testing.T) {
	// arrange
	var calls atomic.Int32
	app := fiber.New()
	app.Post("/payments", Idempotency(NewMemoryIdempotencyStore()), func(c *fiber.Ctx) error {
		n := calls.Add(1)
		if string(c.Body()) == "fail" {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "boom"})
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{"call": n})
	})
	send := func(key, body string) (*http.Response, string) {
		req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(body))
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		b, _ := io.ReadAll(resp.Body)
		return resp, string(b)
	}

	t.Run("replays_first_response", func(t *testing.T) {
		first, firstBody := send("k1", "ok")
		second, secondBody := send("k1", "ok")

		assert.Equal(t, http.StatusCreated, first.StatusCode)
		assert.Equal(t, http.StatusCreated, second.StatusCode)
		assert.Equal(t, "true", second.Header.Get("X-Idempotency-Hit"))
		assert.JSONEq(t, firstBody, secondBody)
	})

	t.Run("no_key_always_runs", func(t *testing.T) {
		before := calls.Load()
		send("", "ok")
		send("", "ok")
		assert.Equal(t, before+2, calls.Load())
	})

	t.Run("server_errors_not_cached", func(t *testing.T) {
		resp, _ := send("k2", "fail")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		resp, _ = send("k2", "ok")
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("X-Idempotency-Hit"))
	})
}

func TestIdempotency_ReleasesKeys(t *testing.T) {
	// arrange
	locks := newKeyLocks()
	app := fiber.New()
	app.Post("/payments", idempotency(NewMemoryIdempotencyStore(), locks), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusCreated)
	})

	// act
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/payments", nil)
			req.Header.Set("Idempotency-Key", fmt.Sprintf("k%d", i%5))
			resp, err := app.Test(req)
			if assert.NoError(t, err) {
				assert.Equal(t, http.StatusCreated, resp.StatusCode)
			}
		}(i)
	}
	wg.Wait()

	// assert
	assert.Zero(t, locks.len())
}
