package codec

import "github.com/google/uuid"

// Handle is a revocable reference to a preview resource. The zero value means
// no preview.
type Handle string

// Store owns preview resources. It belongs to one session and is only touched
// from that session's event loop.
type Store struct {
	live     map[Handle]*Resource
	created  int
	released int
}

func NewStore() *Store {
	return &Store{live: make(map[Handle]*Resource)}
}

// MakePreview registers a preview for image and video types and returns its
// handle. Other types get the zero Handle.
func (s *Store) MakePreview(data []byte, mimeType string) Handle {
	if !CanPreview(mimeType) {
		return ""
	}
	h := Handle("blob:" + uuid.NewString())
	s.live[h] = NewResource(data, mimeType)
	s.created++
	return h
}

// Release drops a preview. Releasing the zero handle or one that is already
// gone is not an error; the result reports whether anything was released.
func (s *Store) Release(h Handle) bool {
	if h == "" {
		return false
	}
	if _, ok := s.live[h]; !ok {
		return false
	}
	delete(s.live, h)
	s.released++
	return true
}

// Lookup returns the resource behind a live handle.
func (s *Store) Lookup(h Handle) (*Resource, bool) {
	r, ok := s.live[h]
	return r, ok
}

// Live is the number of previews not yet released.
func (s *Store) Live() int { return len(s.live) }

// Stats returns how many previews were created and released over the store's life.
func (s *Store) Stats() (created, released int) { return s.created, s.released }
