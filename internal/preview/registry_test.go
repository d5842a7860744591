package preview

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateResolveRevoke(t *testing.T) {
	r := NewRegistry()

	ref, err := r.Create([]byte{1, 2, 3}, "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, Scheme))
	assert.Equal(t, 1, r.Live())

	data, ct, err := r.Resolve(ref)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
	assert.Equal(t, "image/png", ct)

	require.NoError(t, r.Revoke(ref))
	assert.ErrorIs(t, r.Revoke(ref), ErrUnknownReference)
	assert.Zero(t, r.Live())

	created, revoked := r.Stats()
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, revoked)
}

func TestCreateAcceptsEmptyContent(t *testing.T) {
	r := NewRegistry()

	ref, err := r.Create([]byte{}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Live())

	data, ct, err := r.Resolve(ref)
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.Equal(t, "image/png", ct)
	require.NoError(t, r.Revoke(ref))
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	ref, err := r.Create([]byte("png-bytes"), "image/png")
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Get("/preview/{id}", r.Handler())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/preview/"+ID(ref), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", rec.Body.String())

	require.NoError(t, r.Revoke(ref))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/preview/"+ID(ref), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
