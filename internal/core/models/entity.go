package models

import "strconv"

// EntityID is an opaque, externally owned handle naming a scene object.
// The component runtime never allocates or frees entity ids.
type EntityID int64

func (id EntityID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ComponentID names a kind of component within one scene's registry.
type ComponentID int32

func (id ComponentID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Entity is the host's scene object. Component instances keep a reference to it
// only to pass it back to handlers.
type Entity interface {
	ID() EntityID
}

// Scene is an opaque handle passed through unmodified to handlers and sinks.
type Scene interface {
	SceneID() string
}

type entity EntityID

// NewEntity wraps a bare numeric handle for hosts that have no richer entity type.
func NewEntity(id EntityID) Entity {
	return entity(id)
}

func (e entity) ID() EntityID { return EntityID(e) }

type scene string

// NewScene wraps a scene identifier.
func NewScene(id string) Scene {
	return scene(id)
}

func (s scene) SceneID() string { return string(s) }
