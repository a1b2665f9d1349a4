package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ridersalliance/petition-likes/internal/app/likes"
	"github.com/ridersalliance/petition-likes/internal/domain"
)

type MockLikeService struct {
	mock.Mock
}

func (m *MockLikeService) Like(ctx context.Context, slug, clientToken, clientIP string) (domain.LikeResult, error) {
	args := m.Called(ctx, slug, clientToken, clientIP)
	return args.Get(0).(domain.LikeResult), args.Error(1)
}

func (m *MockLikeService) Count(ctx context.Context, slug string) (domain.Slug, int64, error) {
	args := m.Called(ctx, slug)
	return args.Get(0).(domain.Slug), args.Get(1).(int64), args.Error(2)
}

// countingEnsurer stands in for the schema bootstrapper and records how
// often handlers asked for it.
type countingEnsurer struct {
	calls int
	err   error
}

func (c *countingEnsurer) Ensure(ctx context.Context) error {
	c.calls++
	return c.err
}

func setupAPI(t *testing.T, opts Options) (*API, *MockLikeService, *countingEnsurer) {
	mockService := new(MockLikeService)
	ensurer := &countingEnsurer{}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{}))
	if opts.RetryAfterSeconds == 0 {
		opts.RetryAfterSeconds = 600
	}
	api := New(mockService, ensurer, opts, logger)

	t.Cleanup(func() {
		mockService.AssertExpectations(t)
	})

	return api, mockService, ensurer
}

func TestGetLikes_KnownPetition_Returns200WithTotal(t *testing.T) {
	api, mockService, ensurer := setupAPI(t, Options{})

	mockService.On("Count", mock.Anything, "f-train-express").
		Return(domain.Slug("f-train-express"), int64(3), nil)

	req := httptest.NewRequest("GET", "/likes/f-train-express", nil)
	w := httptest.NewRecorder()

	api.handleLikes(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, ensurer.calls)

	var response map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "f-train-express", response["petition_slug"])
	assert.Equal(t, float64(3), response["likes"])
	_, hasLiked := response["liked"]
	assert.False(t, hasLiked, "GET responses must not carry a liked flag")
}

func TestGetLikes_InvalidSlug_Returns400(t *testing.T) {
	api, mockService, _ := setupAPI(t, Options{})

	mockService.On("Count", mock.Anything, "Foo_Bar").
		Return(domain.Slug(""), int64(0), likes.ErrInvalidSlug)

	req := httptest.NewRequest("GET", "/likes/Foo_Bar", nil)
	w := httptest.NewRecorder()

	api.handleLikes(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "Invalid petition slug", response["error"])
}

func TestPostLike_FirstLike_Returns200LikedTrue(t *testing.T) {
	api, mockService, _ := setupAPI(t, Options{})

	mockService.On("Like", mock.Anything, "f-train-express", "abcdefghij1234567890", "203.0.113.9").
		Return(domain.LikeResult{PetitionSlug: "f-train-express", Likes: 4, Liked: true}, nil)

	req := httptest.NewRequest("POST", "/likes/f-train-express", nil)
	req.Header.Set("X-Client-Id", "abcdefghij1234567890")
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	w := httptest.NewRecorder()

	api.handleLikes(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "f-train-express", response["petition_slug"])
	assert.Equal(t, float64(4), response["likes"])
	assert.Equal(t, true, response["liked"])
}

func TestPostLike_Repeat_Returns200LikedFalse(t *testing.T) {
	api, mockService, _ := setupAPI(t, Options{})

	mockService.On("Like", mock.Anything, "f-train-express", "abcdefghij1234567890", likes.UnknownIP).
		Return(domain.LikeResult{PetitionSlug: "f-train-express", Likes: 4, Liked: false}, nil)

	req := httptest.NewRequest("POST", "/likes/f-train-express", nil)
	req.Header.Set("X-Client-Id", "abcdefghij1234567890")
	w := httptest.NewRecorder()

	api.handleLikes(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, false, response["liked"])
	assert.Equal(t, float64(4), response["likes"])
}

func TestPostLike_InvalidClientID_Returns400(t *testing.T) {
	api, mockService, _ := setupAPI(t, Options{})

	mockService.On("Like", mock.Anything, "f-train-express", "short", likes.UnknownIP).
		Return(domain.LikeResult{}, likes.ErrInvalidClientID)

	req := httptest.NewRequest("POST", "/likes/f-train-express", nil)
	req.Header.Set("X-Client-Id", "short")
	w := httptest.NewRecorder()

	api.handleLikes(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "Missing or invalid client identifier", response["error"])
}

func TestPostLike_RateLimited_Returns429WithRetryAfter(t *testing.T) {
	api, mockService, _ := setupAPI(t, Options{RetryAfterSeconds: 600})

	mockService.On("Like", mock.Anything, "f-train-express", "abcdefghij1234567890", likes.UnknownIP).
		Return(domain.LikeResult{PetitionSlug: "f-train-express", Likes: 12}, likes.ErrRateLimited)

	req := httptest.NewRequest("POST", "/likes/f-train-express", nil)
	req.Header.Set("X-Client-Id", "abcdefghij1234567890")
	w := httptest.NewRecorder()

	api.handleLikes(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "600", w.Header().Get("Retry-After"))

	var response map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "Rate limit exceeded", response["error"])
	assert.Equal(t, "f-train-express", response["petition_slug"])
	assert.Equal(t, float64(12), response["likes"])
}

func TestPostLike_StoreFailure_Returns500Opaque(t *testing.T) {
	api, mockService, _ := setupAPI(t, Options{})

	mockService.On("Like", mock.Anything, "f-train-express", "abcdefghij1234567890", likes.UnknownIP).
		Return(domain.LikeResult{}, errors.New("pq: relation does not exist"))

	req := httptest.NewRequest("POST", "/likes/f-train-express", nil)
	req.Header.Set("X-Client-Id", "abcdefghij1234567890")
	w := httptest.NewRecorder()

	api.handleLikes(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "Internal server error", response["error"])
	_, hasDetail := response["detail"]
	assert.False(t, hasDetail, "production 500s must not leak detail")
}

func TestPostLike_StoreFailureInDevelopment_IncludesDetail(t *testing.T) {
	api, mockService, _ := setupAPI(t, Options{ExposeErrorDetail: true})

	mockService.On("Like", mock.Anything, "f-train-express", "abcdefghij1234567890", likes.UnknownIP).
		Return(domain.LikeResult{}, errors.New("pq: relation does not exist"))

	req := httptest.NewRequest("POST", "/likes/f-train-express", nil)
	req.Header.Set("X-Client-Id", "abcdefghij1234567890")
	w := httptest.NewRecorder()

	api.handleLikes(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "pq: relation does not exist", response["detail"])
}

func TestOptions_ShortCircuitsBeforeStorage(t *testing.T) {
	api, _, ensurer := setupAPI(t, Options{AllowedOrigins: "*"})

	req := httptest.NewRequest("OPTIONS", "/likes/f-train-express", nil)
	req.Header.Set("Origin", "https://example.org")
	w := httptest.NewRecorder()

	api.handleLikes(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, 0, ensurer.calls, "preflight must not touch the schema bootstrap")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Values("Vary"), "Origin")
}

func TestUnsupportedMethod_Returns405WithAllow(t *testing.T) {
	api, _, _ := setupAPI(t, Options{})

	req := httptest.NewRequest("DELETE", "/likes/f-train-express", nil)
	w := httptest.NewRecorder()

	api.handleLikes(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET,POST,OPTIONS", w.Header().Get("Allow"))

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "Method not allowed", response["error"])
}

func TestBootstrapFailure_Returns500AndRetriesNextRequest(t *testing.T) {
	api, mockService, ensurer := setupAPI(t, Options{})
	ensurer.err = errors.New("create table failed")

	req := httptest.NewRequest("GET", "/likes/f-train-express", nil)
	w := httptest.NewRecorder()
	api.handleLikes(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, ensurer.calls)

	// Guard resets on failure; the next request attempts bootstrap again.
	ensurer.err = nil
	mockService.On("Count", mock.Anything, "f-train-express").
		Return(domain.Slug("f-train-express"), int64(0), nil)

	w = httptest.NewRecorder()
	api.handleLikes(w, httptest.NewRequest("GET", "/likes/f-train-express", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, ensurer.calls)
}

func TestClientIP_TakesFirstForwardedEntry(t *testing.T) {
	api, mockService, _ := setupAPI(t, Options{})

	mockService.On("Like", mock.Anything, "f-train-express", "abcdefghij1234567890", "203.0.113.9").
		Return(domain.LikeResult{PetitionSlug: "f-train-express", Likes: 1, Liked: true}, nil)

	req := httptest.NewRequest("POST", "/likes/f-train-express", nil)
	req.Header.Set("X-Client-Id", "abcdefghij1234567890")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1, 172.16.0.2")
	w := httptest.NewRecorder()

	api.handleLikes(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorResponsesCarryCORSHeaders(t *testing.T) {
	api, mockService, _ := setupAPI(t, Options{AllowedOrigins: "https://petitions.example.org"})

	mockService.On("Count", mock.Anything, "nope!").
		Return(domain.Slug(""), int64(0), likes.ErrInvalidSlug)

	req := httptest.NewRequest("GET", "/likes/nope!", nil)
	req.Header.Set("Origin", "https://petitions.example.org")
	w := httptest.NewRecorder()

	api.handleLikes(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "https://petitions.example.org", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Values("Vary"), "Origin")
}
