package character_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aikata-app/aikata/internal/character"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if AIKATA_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("AIKATA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AIKATA_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [character.PostgresStore] against a clean
// character_definitions table.
func newTestStore(t *testing.T) *character.PostgresStore {
	t.Helper()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, testDSN(t))
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS character_definitions"); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	store := character.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return store
}

func pgDef(name string) character.Definition {
	return character.Definition{
		Name:              name,
		DisplayName:       name + "-chan",
		Description:       "test character",
		PersonalityTraits: []string{"cheerful"},
		Model:             character.ModelConfig{Ref: "models/" + name + ".vrm", Format: "vrm"},
		Enabled:           true,
	}
}

func TestPostgresAddGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stored, err := store.Add(ctx, pgDef("mira"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if stored.ID == "" {
		t.Fatal("Add must assign an id")
	}
	if stored.CreatedAt.IsZero() || stored.UpdatedAt.IsZero() {
		t.Error("Add must populate timestamps from the database")
	}

	got, err := store.Get(ctx, stored.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "mira" || got.DisplayName != "mira-chan" {
		t.Errorf("Get = %+v", got)
	}
	if len(got.PersonalityTraits) != 1 || got.PersonalityTraits[0] != "cheerful" {
		t.Errorf("traits = %v", got.PersonalityTraits)
	}
	if got.Model.Ref != "models/mira.vrm" {
		t.Errorf("model ref = %q", got.Model.Ref)
	}
}

func TestPostgresDuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	def := pgDef("mira")
	def.ID = "fixed-id"
	if _, err := store.Add(ctx, def); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := store.Add(ctx, def); !errors.Is(err, character.ErrDuplicateID) {
		t.Errorf("second Add returned %v, want ErrDuplicateID", err)
	}
}

func TestPostgresGetUnknown(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Get(context.Background(), "ghost"); !errors.Is(err, character.ErrNotFound) {
		t.Errorf("Get returned %v, want ErrNotFound", err)
	}
}

func TestPostgresUpdateAndRemove(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stored, err := store.Add(ctx, pgDef("mira"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	stored.Description = "updated"
	if err := store.Update(ctx, stored); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := store.Get(ctx, stored.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Description != "updated" {
		t.Errorf("Description = %q", got.Description)
	}

	if err := store.Remove(ctx, stored.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Remove(ctx, stored.ID); !errors.Is(err, character.ErrNotFound) {
		t.Errorf("second Remove returned %v, want ErrNotFound", err)
	}

	ghost := pgDef("ghost")
	ghost.ID = "ghost"
	if err := store.Update(ctx, ghost); !errors.Is(err, character.ErrNotFound) {
		t.Errorf("Update of removed row returned %v, want ErrNotFound", err)
	}
}

func TestPostgresListFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	enabled := pgDef("mira")
	disabled := pgDef("yuki")
	disabled.Enabled = false
	disabled.PersonalityTraits = []string{"shy"}

	for _, d := range []character.Definition{enabled, disabled} {
		if _, err := store.Add(ctx, d); err != nil {
			t.Fatalf("Add %q: %v", d.Name, err)
		}
	}

	all, err := store.List(ctx, character.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List = %d rows, want 2", len(all))
	}
	// ORDER BY name
	if all[0].Name != "mira" || all[1].Name != "yuki" {
		t.Errorf("order = %q, %q", all[0].Name, all[1].Name)
	}

	onlyEnabled, err := store.List(ctx, character.ListOptions{EnabledOnly: true})
	if err != nil {
		t.Fatalf("List enabled: %v", err)
	}
	if len(onlyEnabled) != 1 || onlyEnabled[0].Name != "mira" {
		t.Errorf("enabled listing = %+v", onlyEnabled)
	}

	shy, err := store.List(ctx, character.ListOptions{Traits: []string{"shy"}})
	if err != nil {
		t.Fatalf("List by trait: %v", err)
	}
	if len(shy) != 1 || shy[0].Name != "yuki" {
		t.Errorf("trait listing = %+v", shy)
	}
}

func TestPostgresUpsertIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	def := pgDef("mira")
	if err := store.Upsert(ctx, &def); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	def.Description = "revised"
	if err := store.Upsert(ctx, &def); err != nil {
		t.Fatalf("re-Upsert: %v", err)
	}

	all, err := store.List(ctx, character.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("List = %d rows, want 1 after re-upsert", len(all))
	}
	if all[0].Description != "revised" {
		t.Errorf("Description = %q", all[0].Description)
	}
}

func TestPostgresBulkImport(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	defs := []character.Definition{pgDef("mira"), pgDef("yuki"), pgDef("rin")}
	n, err := store.BulkImport(ctx, defs)
	if err != nil {
		t.Fatalf("BulkImport: %v", err)
	}
	if n != 3 {
		t.Errorf("imported %d, want 3", n)
	}

	// Invalid entry aborts mid-import and reports the partial count.
	bad := []character.Definition{pgDef("aoi"), {Name: ""}}
	n, err = store.BulkImport(ctx, bad)
	if err == nil {
		t.Fatal("expected error for invalid definition")
	}
	if n != 1 {
		t.Errorf("partial count = %d, want 1", n)
	}
}
