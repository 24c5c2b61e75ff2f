package mapent

import (
	"strings"

	"github.com/pkg/errors"
)

// Entity describes one registered model. Name is the lowercase model
// name used in URLs, cache keys and permission codenames.
type Entity struct {
	Name        string
	Label       string
	LabelPlural string
	// Menu controls whether the entity shows up in the navigation.
	Menu bool
	// Kinds restricts the generated views. Empty means all kinds.
	Kinds []Kind
}

func (e Entity) ListURL() string {
	return "/" + e.Name + "/list/"
}

func (e Entity) DetailURLFormat() string {
	return "/" + e.Name + "/%d/"
}

func (e Entity) Icon() string {
	return "images/" + e.Name + ".png"
}

func (e Entity) IconSmall() string {
	return "images/" + e.Name + "-16.png"
}

func (e Entity) IconBig() string {
	return "images/" + e.Name + "-96.png"
}

// HasKind reports whether views of the given kind are generated for
// this entity.
func (e Entity) HasKind(kind Kind) bool {
	if len(e.Kinds) == 0 {
		return true
	}
	for _, k := range e.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Registry holds the registered entities in registration order.
type Registry struct {
	entities []Entity
	byName   map[string]int
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register adds an entity. Names must be unique and lowercase.
// Registering a kind without a known permission action fails early.
func (r *Registry) Register(e Entity) error {
	if e.Name == "" {
		return errors.New("entity name missing")
	}
	if e.Name != strings.ToLower(e.Name) {
		return errors.Errorf("entity name %q not lowercase", e.Name)
	}
	if _, ok := r.byName[e.Name]; ok {
		return errors.Errorf("entity %q already registered", e.Name)
	}
	for _, k := range e.Kinds {
		KindAction(k)
	}
	if e.Label == "" {
		e.Label = strings.ToUpper(e.Name[:1]) + e.Name[1:]
	}
	if e.LabelPlural == "" {
		e.LabelPlural = e.Label + "s"
	}
	r.byName[e.Name] = len(r.entities)
	r.entities = append(r.entities, e)
	return nil
}

// Entities returns all registered entities in registration order.
func (r *Registry) Entities() []Entity {
	return r.entities
}

func (r *Registry) Lookup(name string) (Entity, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Entity{}, false
	}
	return r.entities[i], true
}
