package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func TestSessions_IssueAndVerify(t *testing.T) {
	s := NewSessions(testSecret)

	token, expiresAt, err := s.Issue(42, "alice")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	id, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	other := NewSessions("another-secret-key-1234567890123456789012")
	_, err = other.Verify(token)
	assert.Error(t, err)
}

func TestSessions_VerifyRejectsExpired(t *testing.T) {
	s := NewSessions(testSecret)
	issuedAt := time.Date(2023, 11, 25, 1, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issuedAt }

	token, _, err := s.Issue(7, "bob")
	require.NoError(t, err)

	s.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	_, err = s.Verify(token)
	assert.Error(t, err)
}

func TestSessionRequired(t *testing.T) {
	sessions := NewSessions(testSecret)
	app := fiber.New()
	app.Get("/test", SessionRequired(sessions), func(c *fiber.Ctx) error {
		ctxID, _ := c.UserContext().Value(UserIDKey).(uint)
		return c.JSON(fiber.Map{"userID": c.Locals("userID"), "ctxUserID": ctxID})
	})

	valid, _, err := sessions.Issue(123, "alice")
	require.NoError(t, err)

	// Signed with the right key but missing issuer and audience.
	foreign := func() string {
		claims := jwt.MapClaims{
			"sub": strconv.FormatUint(123, 10),
			"exp": time.Now().Add(time.Hour).Unix(),
		}
		s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		return s
	}()

	tests := []struct {
		name           string
		authHeader     string
		query          string
		expectedStatus int
	}{
		{name: "bearer header", authHeader: "Bearer " + valid, expectedStatus: http.StatusOK},
		{name: "query token", query: "?token=" + valid, expectedStatus: http.StatusOK},
		{name: "missing token", expectedStatus: http.StatusUnauthorized},
		{name: "basic auth", authHeader: "Basic dXNlcjpwYXNz", expectedStatus: http.StatusUnauthorized},
		{name: "malformed token", authHeader: "Bearer malformed.token.here", expectedStatus: http.StatusUnauthorized},
		{name: "foreign claims", authHeader: "Bearer " + foreign, expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test"+tt.query, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var body map[string]any
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, float64(123), body["userID"])
				assert.Equal(t, float64(123), body["ctxUserID"])
			}
		})
	}
}
