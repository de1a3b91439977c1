package recordings

import "sort"

// Store is the persistence abstraction behind InMemoryRepository.
// Implementations need not be safe for concurrent use; the repository
// serialises access.
type Store interface {
	GetCamera(camera string) (*CameraState, bool)
	SetCamera(c *CameraState)
	ListCameras() []string
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	cameras map[string]*CameraState
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		cameras: make(map[string]*CameraState),
	}
}

// GetCamera implements Store.GetCamera.
func (s *InMemoryStore) GetCamera(camera string) (*CameraState, bool) {
	c, ok := s.cameras[camera]
	return c, ok
}

// SetCamera implements Store.SetCamera.
func (s *InMemoryStore) SetCamera(c *CameraState) {
	s.cameras[c.Camera] = c
}

// ListCameras implements Store.ListCameras. Names are sorted.
func (s *InMemoryStore) ListCameras() []string {
	names := make([]string, 0, len(s.cameras))
	for name := range s.cameras {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
