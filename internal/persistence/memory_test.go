package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type widget struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Tags      []string  `bson:"tags"`
	Stock     int       `bson:"stock"`
	CreatedAt time.Time `bson:"createdAt"`
}

func (w *widget) EntityID() string      { return w.ID }
func (w *widget) SetEntityID(id string) { w.ID = id }

var (
	widgetName  = NewField[widget, string]("name")
	widgetTags  = NewField[widget, []string]("tags")
	widgetStock = NewField[widget, int]("stock")
	widgetID    = NewField[widget, string](IdentityField)
)

type place struct {
	ID       string    `bson:"_id"`
	Name     string    `bson:"name"`
	Location *GeoPoint `bson:"location,omitempty"`
}

func (p *place) EntityID() string          { return p.ID }
func (p *place) SetEntityID(id string)     { p.ID = id }
func (p *place) EntityLocation() *GeoPoint { return p.Location }

func pointPtr(lat, lng float64) *GeoPoint {
	p := NewGeoPoint(lat, lng)
	return &p
}

func TestMemoryStore_CreateThenFindByID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[widget]("Collection")
	created := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

	w, err := s.Create(ctx, &widget{Name: "gear", Tags: []string{"metal"}, Stock: 4, CreatedAt: created})
	require.NoError(t, err)
	require.NotEmpty(t, w.ID)

	got, err := s.FindByID(ctx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, w.ID, got.ID)
	require.Equal(t, "gear", got.Name)
	require.Equal(t, []string{"metal"}, got.Tags)
	require.Equal(t, 4, got.Stock)
	require.True(t, created.Equal(got.CreatedAt))
}

func TestMemoryStore_CreateKeepsGivenIdentity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[widget]("Collection")

	_, err := s.Create(ctx, &widget{ID: "w-1", Name: "a"})
	require.NoError(t, err)

	_, err = s.Create(ctx, &widget{ID: "w-1", Name: "b"})
	var se *StoreError
	require.True(t, errors.As(err, &se))
	require.True(t, errors.Is(err, ErrDuplicateKey))
	require.Equal(t, "w-1", se.ID)
}

func TestMemoryStore_FindByIDMissing(t *testing.T) {
	s := NewMemoryStore[widget]("Collection")
	got, err := s.FindByID(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestMemoryStore_FindByProperty(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[widget]("Collection")
	_, _ = s.Create(ctx, &widget{Name: "gear", Tags: []string{"metal", "round"}})
	_, _ = s.Create(ctx, &widget{Name: "gear", Tags: []string{"plastic"}})
	_, _ = s.Create(ctx, &widget{Name: "bolt", Tags: []string{"metal"}})

	gears, err := s.FindByProperty(ctx, widgetName.Is("gear"))
	require.NoError(t, err)
	require.Len(t, gears, 2)

	none, err := s.FindByProperty(ctx, widgetName.Is("spring"))
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)
}

func TestMemoryStore_FindByPropertyMatchesArrayElements(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[widget]("Collection")
	_, _ = s.Create(ctx, &widget{Name: "gear", Tags: []string{"metal", "round"}})
	_, _ = s.Create(ctx, &widget{Name: "cup", Tags: []string{"plastic"}})

	byElement, err := s.FindByProperty(ctx, Property[widget]{name: "tags", value: "metal"})
	require.NoError(t, err)
	require.Len(t, byElement, 1)
	require.Equal(t, "gear", byElement[0].Name)

	whole, err := s.FindByProperty(ctx, widgetTags.Is([]string{"plastic"}))
	require.NoError(t, err)
	require.Len(t, whole, 1)
	require.Equal(t, "cup", whole[0].Name)
}

func TestMemoryStore_FindAndUpdateByProperty(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[widget]("Collection")
	w, err := s.Create(ctx, &widget{Name: "gear", Stock: 1})
	require.NoError(t, err)

	updated, err := s.FindAndUpdateByProperty(ctx, w.ID, widgetStock.Is(9))
	require.NoError(t, err)
	require.NotNil(t, updated)
	require.Equal(t, 9, updated.Stock)
	require.Equal(t, "gear", updated.Name)

	got, err := s.FindByID(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, 9, got.Stock)
}

func TestMemoryStore_FindAndUpdateMissingCreatesNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[widget]("Collection")

	got, err := s.FindAndUpdateByProperty(ctx, "ghost", widgetName.Is("x"))
	require.NoError(t, err)
	require.Nil(t, got)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestMemoryStore_FindAndUpdateRejectsIdentity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[widget]("Collection")
	w, _ := s.Create(ctx, &widget{Name: "gear"})

	_, err := s.FindAndUpdateByProperty(ctx, w.ID, widgetID.Is("other"))
	require.ErrorIs(t, err, ErrIdentityField)

	got, _ := s.FindByID(ctx, w.ID)
	require.NotNil(t, got)
}

func TestMemoryStore_FindAndUpdateNoPartialApplication(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[widget]("Collection")
	w, _ := s.Create(ctx, &widget{Name: "gear", Stock: 3})

	// a string can not be decoded into the int field, so nothing changes
	_, err := s.FindAndUpdateByProperty(ctx, w.ID, Property[widget]{name: "stock", value: "many"})
	require.Error(t, err)

	got, err := s.FindByID(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, 3, got.Stock)
}

func TestMemoryStore_UpdatePreservesIdentity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[widget]("Collection")
	w, _ := s.Create(ctx, &widget{Name: "gear"})

	updated, err := s.Update(ctx, w.ID, &widget{ID: "something-else", Name: "cog"})
	require.NoError(t, err)
	require.Equal(t, w.ID, updated.ID)
	require.Equal(t, "cog", updated.Name)

	missing, err := s.Update(ctx, "ghost", &widget{Name: "x"})
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestMemoryStore_DeleteThenFind(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[widget]("Collection")
	w, _ := s.Create(ctx, &widget{Name: "gear"})

	ok, err := s.Delete(ctx, w.ID)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.FindByID(ctx, w.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	again, err := s.Delete(ctx, w.ID)
	require.NoError(t, err)
	require.False(t, again)
}

func TestMemoryStore_ConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[widget]("Collection")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(ctx, &widget{Name: "w"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 50)
}

func TestMemoryStore_ReadsDuringMigration(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[widget]("Collection")
	require.NoError(t, s.InsertDocument(bson.M{"_id": "1", "Title": "Foo"}))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, err := s.FindByID(ctx, "1")
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, _ = s.RenameField(ctx, "Title", "name")
			_, _ = s.SetFieldDefault(ctx, "stock", 0)
			_, _ = s.UnsetField(ctx, "stock")
			_, _ = s.RenameField(ctx, "name", "Title")
		}
	}()
	wg.Wait()

	w, err := s.FindByID(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, w)
}

func TestMemoryStore_FieldMigration(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[widget]("Collection")
	require.NoError(t, s.InsertDocument(bson.M{"_id": "1", "Title": "Foo"}))
	require.NoError(t, s.InsertDocument(bson.M{"_id": "2", "name": "kept", "Title": "stale"}))

	n, err := s.RenameField(ctx, "Title", "name")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.Equal(t, "Foo", s.Document("1")["name"])
	require.Equal(t, "kept", s.Document("2")["name"])

	n, err = s.SetFieldDefault(ctx, "stock", 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	n, err = s.UnsetField(ctx, "Title")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	_, has := s.Document("2")["Title"]
	require.False(t, has)
}

func TestMemoryGeoStore_FindNearest(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryGeoStore[place]("Collection")
	_, _ = s.Create(ctx, &place{Name: "far", Location: pointPtr(48.8566, 2.3522)})
	_, _ = s.Create(ctx, &place{Name: "near", Location: pointPtr(52.5205, 13.4095)})
	_, _ = s.Create(ctx, &place{Name: "nowhere"})
	_, _ = s.Create(ctx, &place{Name: "mid", Location: pointPtr(51.0504, 13.7373)})

	origin := NewGeoPoint(52.5200, 13.4050)
	got, err := s.FindNearest(ctx, origin, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "near", got[0].Name)

	prev := -1.0
	for _, p := range got {
		require.NotNil(t, p.Location)
		d := DistanceKm(origin, *p.Location)
		require.GreaterOrEqual(t, d, prev)
		prev = d
	}

	two, err := s.FindNearest(ctx, origin, 2)
	require.NoError(t, err)
	require.Len(t, two, 2)

	none, err := s.FindNearest(ctx, origin, 0)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestCollectionName(t *testing.T) {
	require.Equal(t, "widgetCollection", CollectionName[widget]("Collection"))
	require.Equal(t, "widgetCollection", NewMemoryStore[widget]("Collection").CollectionName())
}
