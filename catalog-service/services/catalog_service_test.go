package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"gear-rental/shared/config"
	"gear-rental/shared/models"
	"gear-rental/shared/storage"
)

func newTestCatalog(t *testing.T, base []models.Product) (*CatalogService, storage.Store) {
	t.Helper()
	cfg := &config.Config{Storage: config.StorageConfig{KeyPrefix: "test"}}
	store := storage.NewMemoryStore()
	svc := NewCatalogService(cfg, store, &Loader{})
	svc.base = base
	return svc, store
}

func TestCatalogMergeRule(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestCatalog(t, fixtureProducts())

	edited := fixtureProducts()[1]
	edited.Name = "GoPro HERO12 Black"
	if _, err := svc.UpsertProduct(ctx, edited); err != nil {
		t.Fatalf("upsert edit: %v", err)
	}

	added := models.Product{Name: "Kayak", Description: "Two-seat kayak", Category: "Water", WeeklyPrice: 1500, MonthlyPrice: 4000}
	saved, err := svc.UpsertProduct(ctx, added)
	if err != nil {
		t.Fatalf("upsert new: %v", err)
	}
	if saved.ID == "" || saved.ExperienceLevel != models.LevelExplorer || saved.Price != 1500 {
		t.Fatalf("defaults not applied: %+v", saved)
	}

	if err := svc.DeleteProduct(ctx, "p3"); err != nil {
		t.Fatalf("delete base: %v", err)
	}

	all := svc.All(ctx)
	if got, want := ids(all), []string{"p1", "p2", "p4", saved.ID}; !reflect.DeepEqual(got, want) {
		t.Fatalf("merged ids = %v, want %v", got, want)
	}
	if all[1].Name != "GoPro HERO12 Black" {
		t.Errorf("override not applied: %q", all[1].Name)
	}

	if _, err := svc.Get(ctx, "p3"); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("tombstoned product should be hidden, got %v", err)
	}

	// Restoring a deleted base product clears its tombstone.
	restored := fixtureProducts()[2]
	if _, err := svc.UpsertProduct(ctx, restored); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, err := svc.Get(ctx, "p3"); err != nil {
		t.Errorf("restored product missing: %v", err)
	}
}

func TestCatalogDeleteAdminOnlyAndMissing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestCatalog(t, fixtureProducts())

	saved, err := svc.UpsertProduct(ctx, models.Product{ID: "x1", Name: "SUP board", Description: "Paddle board", Category: "Water", WeeklyPrice: 900})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := svc.DeleteProduct(ctx, saved.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, "x1"); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("deleted admin product still visible")
	}
	if err := svc.DeleteProduct(ctx, "nope"); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCatalogUpsertValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestCatalog(t, nil)

	tests := []struct {
		name    string
		product models.Product
	}{
		{"missing name", models.Product{Description: "d", Category: "c", WeeklyPrice: 10}},
		{"missing weekly price", models.Product{Name: "n", Description: "d", Category: "c"}},
		{"bad level", models.Product{Name: "n", Description: "d", Category: "c", WeeklyPrice: 10, ExperienceLevel: "guru"}},
		{"min over max", models.Product{Name: "n", Description: "d", Category: "c", WeeklyPrice: 10, MinimumRentalDays: 10, MaximumRentalDays: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.UpsertProduct(ctx, tt.product); !errors.Is(err, ErrInvalidProduct) {
				t.Fatalf("expected ErrInvalidProduct, got %v", err)
			}
		})
	}
}

func TestCatalogDegradesOnCorruptAdminList(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestCatalog(t, fixtureProducts())

	// A string where a product list is expected cannot be decoded.
	if err := store.Save(ctx, "test:"+storage.KeyAdminProducts, "garbage"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if got := len(svc.All(ctx)); got != 4 {
		t.Fatalf("expected base catalog only, got %d products", got)
	}
}

func TestCatalogQueries(t *testing.T) {
	ctx := context.Background()
	base := fixtureProducts()
	base[0].Featured = true
	base[3].Featured = true
	svc, _ := newTestCatalog(t, base)

	if got := ids(svc.Featured(ctx)); !reflect.DeepEqual(got, []string{"p1", "p4"}) {
		t.Errorf("featured = %v", got)
	}
	if got := svc.Categories(ctx); !reflect.DeepEqual(got, []string{"Astronomy", "Cameras", "Camping", "Drones"}) {
		t.Errorf("categories = %v", got)
	}
	if got := ids(svc.ByCategory(ctx, "drones")); !reflect.DeepEqual(got, []string{"p1"}) {
		t.Errorf("by category = %v", got)
	}
	if got := ids(svc.Filter(ctx, FilterSpec{Search: "drone"})); !reflect.DeepEqual(got, []string{"p1", "p2"}) {
		t.Errorf("filter = %v", got)
	}
}

func TestLoaderFallbackOrder(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "products.csv")
	jsonPath := filepath.Join(dir, "products.json")

	static := []byte(`[{"id":"static-1","name":"Static"}]`)
	loader := &Loader{CSVPath: csvPath, JSONPath: jsonPath, Static: static}

	// Nothing on disk: bundled dataset.
	if got := ids(loader.Load()); !reflect.DeepEqual(got, []string{"static-1"}) {
		t.Fatalf("static fallback = %v", got)
	}

	// JSON present: preferred over static.
	if err := os.WriteFile(jsonPath, []byte(`[{"id":"json-1","name":"Json"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	products := loader.Load()
	if got := ids(products); !reflect.DeepEqual(got, []string{"json-1"}) {
		t.Fatalf("json fallback = %v", got)
	}
	if products[0].Specs == nil {
		t.Errorf("specs should default to an empty map")
	}

	// A readable CSV is authoritative even with only a header.
	if err := os.WriteFile(csvPath, []byte("id,name\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := loader.Load(); got == nil || len(got) != 0 {
		t.Fatalf("header-only csv should give an empty catalog, got %v", ids(got))
	}

	if err := os.WriteFile(csvPath, []byte("id,name\ncsv-1,Csv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := ids(loader.Load()); !reflect.DeepEqual(got, []string{"csv-1"}) {
		t.Fatalf("csv source = %v", got)
	}
}

func TestLoaderEmptyWhenNothingAvailable(t *testing.T) {
	loader := &Loader{CSVPath: filepath.Join(t.TempDir(), "missing.csv"), Static: []byte("not json")}
	got := loader.Load()
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty catalog, got %#v", got)
	}
}

func TestBundledDatasetDecodes(t *testing.T) {
	products, err := decodeProducts(staticProducts)
	if err != nil {
		t.Fatalf("bundled dataset: %v", err)
	}
	if len(products) == 0 {
		t.Fatalf("bundled dataset is empty")
	}
	for _, p := range products {
		if !p.ExperienceLevel.Valid() {
			t.Errorf("product %s has invalid level %q", p.ID, p.ExperienceLevel)
		}
	}
}
