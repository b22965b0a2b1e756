package persistence

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// MemoryStore is an in-memory Repository and FieldMigrator. Entities are kept
// as BSON-normalised documents so lookups, updates and migrations behave
// like they do against MongoDB. Used by tests and local tooling.
type MemoryStore[T any, P Entity[T]] struct {
	mu    sync.RWMutex
	docs  map[string]bson.M
	order []string
	instrument
}

func NewMemoryStore[T any, P Entity[T]](suffix string) *MemoryStore[T, P] {
	return &MemoryStore[T, P]{
		docs:       make(map[string]bson.M),
		instrument: instrument{collection: CollectionName[T](suffix)},
	}
}

func (m *MemoryStore[T, P]) CollectionName() string { return m.collection }

func (m *MemoryStore[T, P]) Create(ctx context.Context, entity *T) (*T, error) {
	if entity == nil {
		return nil, ErrNilEntity
	}
	p := P(entity)
	if p.EntityID() == "" {
		p.SetEntityID(uuid.NewString())
	}
	doc, err := toDoc(entity)
	if err != nil {
		return nil, m.fail("create", p.EntityID(), "", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[p.EntityID()]; ok {
		return nil, m.fail("create", p.EntityID(), "", duplicateKey(fmt.Errorf("_id %q already stored", p.EntityID())))
	}
	m.put(p.EntityID(), doc)
	m.ok("create")
	return entity, nil
}

// FindByID decodes under the read lock; migrations rewrite stored documents
// in place.
func (m *MemoryStore[T, P]) FindByID(ctx context.Context, id string) (*T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		m.ok("find_by_id")
		return nil, nil
	}
	out, err := fromDoc[T](doc)
	if err != nil {
		return nil, m.fail("find_by_id", id, "", err)
	}
	m.ok("find_by_id")
	return out, nil
}

func (m *MemoryStore[T, P]) FindByProperty(ctx context.Context, match Property[T]) ([]*T, error) {
	want, err := normalize(match.Value())
	if err != nil {
		return nil, m.fail("find_by_property", "", match.Name(), err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*T{}
	for _, id := range m.order {
		doc := m.docs[id]
		got, ok := doc[match.Name()]
		if !ok || !matches(got, want) {
			continue
		}
		v, err := fromDoc[T](doc)
		if err != nil {
			return nil, m.fail("find_by_property", id, match.Name(), err)
		}
		out = append(out, v)
	}
	m.ok("find_by_property")
	return out, nil
}

func (m *MemoryStore[T, P]) FindAndUpdateByProperty(ctx context.Context, id string, set Property[T]) (*T, error) {
	if set.Name() == IdentityField {
		return nil, m.fail("find_and_update", id, set.Name(), ErrIdentityField)
	}
	value, err := normalize(set.Value())
	if err != nil {
		return nil, m.fail("find_and_update", id, set.Name(), err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		m.ok("find_and_update")
		return nil, nil
	}
	next := make(bson.M, len(doc)+1)
	for k, v := range doc {
		next[k] = v
	}
	next[set.Name()] = value
	out, err := fromDoc[T](next)
	if err != nil {
		return nil, m.fail("find_and_update", id, set.Name(), err)
	}
	m.docs[id] = next
	m.ok("find_and_update")
	return out, nil
}

func (m *MemoryStore[T, P]) Update(ctx context.Context, id string, replacement *T) (*T, error) {
	if replacement == nil {
		return nil, ErrNilEntity
	}
	P(replacement).SetEntityID(id)
	doc, err := toDoc(replacement)
	if err != nil {
		return nil, m.fail("update", id, "", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		m.ok("update")
		return nil, nil
	}
	m.docs[id] = doc
	out, err := fromDoc[T](doc)
	if err != nil {
		return nil, m.fail("update", id, "", err)
	}
	m.ok("update")
	return out, nil
}

func (m *MemoryStore[T, P]) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		m.ok("delete")
		return false, nil
	}
	delete(m.docs, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.ok("delete")
	return true, nil
}

func (m *MemoryStore[T, P]) List(ctx context.Context) ([]*T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*T, 0, len(m.order))
	for _, id := range m.order {
		v, err := fromDoc[T](m.docs[id])
		if err != nil {
			return nil, m.fail("list", id, "", err)
		}
		out = append(out, v)
	}
	m.ok("list")
	return out, nil
}

// InsertDocument stores a raw document, e.g. one in an older schema shape.
// The document must carry a string _id.
func (m *MemoryStore[T, P]) InsertDocument(doc bson.M) error {
	norm, err := toDoc(doc)
	if err != nil {
		return err
	}
	id, ok := norm[IdentityField].(string)
	if !ok || id == "" {
		return fmt.Errorf("document has no string %s", IdentityField)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[id]; exists {
		return duplicateKey(fmt.Errorf("_id %q already stored", id))
	}
	m.put(id, norm)
	return nil
}

// Document returns a copy of the raw stored document, or nil.
func (m *MemoryStore[T, P]) Document(id string) bson.M {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil
	}
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func (m *MemoryStore[T, P]) RenameField(ctx context.Context, from, to string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, doc := range m.docs {
		v, hasFrom := doc[from]
		if _, hasTo := doc[to]; !hasFrom || hasTo {
			continue
		}
		doc[to] = v
		delete(doc, from)
		n++
	}
	m.ok("rename_field")
	return n, nil
}

func (m *MemoryStore[T, P]) SetFieldDefault(ctx context.Context, field string, value any) (int64, error) {
	norm, err := normalize(value)
	if err != nil {
		return 0, m.fail("set_field_default", "", field, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, doc := range m.docs {
		if _, ok := doc[field]; ok {
			continue
		}
		doc[field] = norm
		n++
	}
	m.ok("set_field_default")
	return n, nil
}

func (m *MemoryStore[T, P]) UnsetField(ctx context.Context, field string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, doc := range m.docs {
		if _, ok := doc[field]; !ok {
			continue
		}
		delete(doc, field)
		n++
	}
	m.ok("unset_field")
	return n, nil
}

func (m *MemoryStore[T, P]) put(id string, doc bson.M) {
	m.docs[id] = doc
	m.order = append(m.order, id)
}

// MemoryGeoStore adds proximity search over great-circle distance.
type MemoryGeoStore[T any, P LocatedEntity[T]] struct {
	*MemoryStore[T, P]
}

func NewMemoryGeoStore[T any, P LocatedEntity[T]](suffix string) *MemoryGeoStore[T, P] {
	return &MemoryGeoStore[T, P]{MemoryStore: NewMemoryStore[T, P](suffix)}
}

func (m *MemoryGeoStore[T, P]) FindNearest(ctx context.Context, point GeoPoint, count int) ([]*T, error) {
	if count <= 0 {
		return []*T{}, nil
	}
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	type ranked struct {
		v    *T
		dist float64
	}
	located := make([]ranked, 0, len(all))
	for _, v := range all {
		loc := P(v).EntityLocation()
		if loc == nil || len(loc.Coordinates) != 2 {
			continue
		}
		located = append(located, ranked{v: v, dist: DistanceKm(point, *loc)})
	}
	sort.SliceStable(located, func(i, j int) bool { return located[i].dist < located[j].dist })
	if len(located) > count {
		located = located[:count]
	}
	out := make([]*T, 0, len(located))
	for _, r := range located {
		out = append(out, r.v)
	}
	m.ok("find_nearest")
	return out, nil
}

func toDoc(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return doc, nil
}

func fromDoc[T any](doc bson.M) (*T, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	var out T
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &out, nil
}

// normalize runs a single value through the BSON codec so it compares equal
// to values read back from stored documents.
func normalize(v any) (any, error) {
	doc, err := toDoc(bson.M{"v": v})
	if err != nil {
		return nil, err
	}
	return doc["v"], nil
}

func matches(got, want any) bool {
	if reflect.DeepEqual(got, want) {
		return true
	}
	if arr, ok := got.(bson.A); ok {
		if _, wantArr := want.(bson.A); !wantArr {
			for _, el := range arr {
				if reflect.DeepEqual(el, want) {
					return true
				}
			}
		}
	}
	return false
}
