package recordings

import (
	"reflect"
	"testing"
)

func TestInMemoryStore_GetSetCamera(t *testing.T) {
	store := NewInMemoryStore()

	if _, ok := store.GetCamera("front"); ok {
		t.Error("expected not found for empty store")
	}

	cam := &CameraState{Camera: "front"}
	store.SetCamera(cam)

	got, ok := store.GetCamera("front")
	if !ok || got != cam {
		t.Errorf("GetCamera: ok=%v, got %p want %p", ok, got, cam)
	}
}

func TestInMemoryStore_SetCamera_replaces(t *testing.T) {
	store := NewInMemoryStore()
	c1 := &CameraState{Camera: "front"}
	c2 := &CameraState{Camera: "front"}
	store.SetCamera(c1)
	store.SetCamera(c2)

	got, ok := store.GetCamera("front")
	if !ok || got != c2 {
		t.Errorf("SetCamera should replace: got %p want %p", got, c2)
	}
}

func TestInMemoryStore_ListCameras_sorted(t *testing.T) {
	store := NewInMemoryStore()
	for _, name := range []string{"side", "back", "front"} {
		store.SetCamera(&CameraState{Camera: name})
	}

	if got := store.ListCameras(); !reflect.DeepEqual(got, []string{"back", "front", "side"}) {
		t.Errorf("ListCameras = %v", got)
	}
}
