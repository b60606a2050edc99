package persistence_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/coachpo/folio/internal/domain/strategystore"
	"github.com/coachpo/folio/internal/infra/persistence/migrations"
	pgstore "github.com/coachpo/folio/internal/infra/persistence/postgres"
)

var (
	testPool    *pgxpool.Pool
	pgContainer testcontainers.Container
	setupErr    error
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_PASSWORD": "secret", "POSTGRES_USER": "postgres", "POSTGRES_DB": "folio"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}
	pgContainer = container

	setupErr = initialiseDatabase(ctx)
	exitCode := 0
	if setupErr != nil {
		fmt.Fprintf(os.Stderr, "postgres contract tests skipped: %v\n", setupErr)
	} else {
		exitCode = m.Run()
	}

	if testPool != nil {
		testPool.Close()
	}
	if pgContainer != nil {
		_ = pgContainer.Terminate(ctx)
	}
	os.Exit(exitCode)
}

func initialiseDatabase(ctx context.Context) error {
	host, err := pgContainer.Host(ctx)
	if err != nil {
		return fmt.Errorf("container host: %w", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return fmt.Errorf("container port: %w", err)
	}
	dsn := fmt.Sprintf("postgres://postgres:secret@%s:%s/folio?sslmode=disable", host, port.Port())

	if err := migrations.Apply(ctx, dsn, nil); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("pgx pool: %w", err)
	}
	testPool = pool
	return nil
}

func TestStrategyStoreRoundTrips(t *testing.T) {
	if setupErr != nil {
		t.Skipf("postgres contract setup unavailable: %v", setupErr)
	}
	ctx := context.Background()
	store := pgstore.NewStore(testPool)

	setting := strategystore.Setting{
		Class:       "pair_spread",
		Instruments: []string{"IF2406.CFFEX", "IC2406.CFFEX"},
		Parameters:  map[string]any{"window": float64(20), "entry_level": 2.0},
	}
	if err := store.SaveSetting(ctx, "pair1", setting); err != nil {
		t.Fatalf("save setting: %v", err)
	}

	updated := setting
	updated.Parameters = map[string]any{"window": float64(30)}
	if err := store.SaveSetting(ctx, "pair1", updated); err != nil {
		t.Fatalf("upsert setting: %v", err)
	}

	settings, err := store.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	got, ok := settings["pair1"]
	if !ok {
		t.Fatalf("setting missing after save: %v", settings)
	}
	if got.Class != "pair_spread" || len(got.Instruments) != 2 {
		t.Fatalf("loaded setting = %+v", got)
	}
	if got.Parameters["window"] != float64(30) {
		t.Fatalf("upsert did not replace parameters: %v", got.Parameters)
	}

	vars := map[string]any{
		"pos_IF2406.CFFEX": float64(2),
		"spread_mean":      1.5,
	}
	if err := store.SaveVariables(ctx, "pair1", vars); err != nil {
		t.Fatalf("save variables: %v", err)
	}
	loadedVars, err := store.LoadVariables(ctx, "pair1")
	if err != nil {
		t.Fatalf("load variables: %v", err)
	}
	if loadedVars["spread_mean"] != 1.5 {
		t.Fatalf("variables round trip = %v", loadedVars)
	}

	missing, err := store.LoadVariables(ctx, "nope")
	if err != nil {
		t.Fatalf("load missing variables: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown strategy, got %v", missing)
	}

	if err := store.DeleteSetting(ctx, "pair1"); err != nil {
		t.Fatalf("delete setting: %v", err)
	}
	settings, err = store.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("reload settings: %v", err)
	}
	if _, ok := settings["pair1"]; ok {
		t.Fatalf("setting survived delete")
	}
	afterDelete, err := store.LoadVariables(ctx, "pair1")
	if err != nil {
		t.Fatalf("load variables after delete: %v", err)
	}
	if afterDelete != nil {
		t.Fatalf("variables survived delete: %v", afterDelete)
	}
}
