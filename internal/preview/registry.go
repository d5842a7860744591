// Package preview issues revocable references to in-memory image bytes so a
// selected image can be rendered without a round trip to the extraction
// service. A reference stays resolvable until it is revoked.
package preview

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Scheme prefixes every reference.
const Scheme = "blob:"

var ErrUnknownReference = errors.New("preview: unknown or revoked reference")

type entry struct {
	data        []byte
	contentType string
}

// Registry maps references to image bytes.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	created int
	revoked int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Create binds data to a new reference. Empty data is a valid blob.
func (r *Registry) Create(data []byte, contentType string) (string, error) {
	ref := Scheme + uuid.NewString()

	r.mu.Lock()
	r.entries[ref] = entry{data: data, contentType: contentType}
	r.created++
	r.mu.Unlock()
	return ref, nil
}

// Revoke releases a reference. Revoking twice returns ErrUnknownReference.
func (r *Registry) Revoke(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[ref]; !ok {
		return ErrUnknownReference
	}
	delete(r.entries, ref)
	r.revoked++
	return nil
}

// Resolve returns the bytes and content type bound to ref.
func (r *Registry) Resolve(ref string) ([]byte, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[ref]
	if !ok {
		return nil, "", ErrUnknownReference
	}
	return e.data, e.contentType, nil
}

// Live reports how many references are currently resolvable.
func (r *Registry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Stats reports lifetime create and revoke counts.
func (r *Registry) Stats() (created, revoked int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.created, r.revoked
}

// ID strips the scheme, producing the path segment used by Handler.
func ID(ref string) string {
	return strings.TrimPrefix(ref, Scheme)
}

// Handler serves GET {prefix}/{id}. It must be mounted on a chi router.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		data, ct, err := r.Resolve(Scheme + id)
		if err != nil {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(data)
	}
}
