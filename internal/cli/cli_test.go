package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/athebyme/gomarket-platform/ean-service/config"
	"github.com/athebyme/gomarket-platform/ean-service/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/hooks"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/services"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/validation"
	"github.com/athebyme/gomarket-platform/ean-service/internal/security"
	"github.com/athebyme/gomarket-platform/ean-service/internal/testutil"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	basemodels "github.com/athebyme/gomarket-platform/ean-service/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	catalog  *testutil.MemoryCatalog
	role     string
	migrate  func(ctx context.Context) (int64, error)
	rollback func(ctx context.Context, steps int) error
	closed   int
}

func newFixture(role string) *fixture {
	f := &fixture{catalog: testutil.NewMemoryCatalog(), role: role}
	f.catalog.SetOption(models.OptionPluginVersion, "2.1.0")
	f.catalog.AddProduct(&basemodels.Product{ID: 1, Type: basemodels.ProductTypeSimple, Name: "Mug"})
	f.catalog.AddProduct(&basemodels.Product{ID: 2, Type: basemodels.ProductTypeSimple, Name: "Plate"})
	return f
}

func (f *fixture) open(_ context.Context, _ *config.Config, _ interfaces.LoggerPort) (*Env, error) {
	log := logger.NewNopLogger()
	settings := models.PluginSettings{Version: "2.1.0", CacheTTL: time.Minute}

	registry := hooks.NewRegistry()
	accessors := services.NewAccessorFactory(f.catalog, f.catalog, testutil.NoTx{}, nil, registry,
		validation.NewNormalizer(log, false, nil), log, settings)
	service := services.NewIdentifierService(f.catalog, testutil.NoTx{}, nil, accessors, registry,
		services.NewPluginState(), log, settings)

	return &Env{
		Service:   service,
		Caps:      security.NewAuthorizer(nil),
		Principal: &interfaces.Principal{UserID: "cli", Roles: []string{f.role}},
		Migrate:   f.migrate,
		Rollback:  f.rollback,
		Close:     func() { f.closed++ },
	}, nil
}

func (f *fixture) execute(args ...string) (string, string, error) {
	root := NewRootCmd(f.open)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestStats(t *testing.T) {
	f := newFixture("admin")
	f.catalog.SetMeta(1, models.MetaKeyGTIN, "4250123456789")
	f.catalog.SetMeta(2, models.MetaKeyMPN, "PL-2")

	out, _, err := f.execute("stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Plugin Version:          2.1.0")
	assert.Contains(t, out, "Products with GTIN/EAN:  1")
	assert.Contains(t, out, "Products with MPN:       1")
	assert.Contains(t, out, "Total metadata entries:  2")
	assert.Equal(t, 1, f.closed)

	out, _, err = f.execute("stats", "--json")
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "2.1.0", got["version"])
	assert.EqualValues(t, 1, got["products_with_gtin"])
	assert.EqualValues(t, 2, got["total_meta_rows"])
}

func TestExportToStdout(t *testing.T) {
	f := newFixture("shop_manager")
	f.catalog.SetMeta(1, models.MetaKeyGTIN, "4250123456789")

	out, _, err := f.execute("export")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Product ID,Product Name,Product Type,GTIN/EAN,MPN,Export Date", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1,Mug,product,4250123456789,,"), lines[1])
}

func TestExportToFile(t *testing.T) {
	f := newFixture("admin")
	f.catalog.SetMeta(2, models.MetaKeyMPN, "PL-2")
	path := filepath.Join(t.TempDir(), "ean.csv")

	_, errOut, err := f.execute("export", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, errOut, "Exported 1 rows to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2,Plate,product,,PL-2,")
}

func TestExportWithoutData(t *testing.T) {
	f := newFixture("admin")
	path := filepath.Join(t.TempDir(), "ean.csv")

	_, _, err := f.execute("export", "--out", path)
	require.EqualError(t, err, "no EAN/GTIN data found to export")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExportRequiresManageCatalog(t *testing.T) {
	f := newFixture("editor")
	f.catalog.SetMeta(1, models.MetaKeyGTIN, "4250123456789")

	out, _, err := f.execute("export")
	require.EqualError(t, err, "you do not have sufficient permissions")
	assert.Empty(t, out)
}

func TestUninstallRequiresConfirmations(t *testing.T) {
	f := newFixture("admin")
	f.catalog.SetMeta(1, models.MetaKeyGTIN, "4250123456789")

	_, _, err := f.execute("uninstall", "--confirm-data-deletion")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--confirm-no-backup")

	_, ok := f.catalog.Meta(1, models.MetaKeyGTIN)
	assert.True(t, ok)
}

func TestUninstallDenied(t *testing.T) {
	f := newFixture("shop_manager")
	f.catalog.SetMeta(1, models.MetaKeyGTIN, "4250123456789")

	_, _, err := f.execute("uninstall", "--confirm-data-deletion", "--confirm-no-backup")
	require.EqualError(t, err, "you do not have sufficient permissions")

	_, ok := f.catalog.Meta(1, models.MetaKeyGTIN)
	assert.True(t, ok)
}

func TestUninstall(t *testing.T) {
	f := newFixture("admin")
	f.catalog.SetMeta(1, models.MetaKeyGTIN, "4250123456789")
	f.catalog.SetMeta(2, models.MetaKeyMPN, "PL-2")

	out, _, err := f.execute("uninstall", "--confirm-data-deletion", "--confirm-no-backup")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted: 1 GTIN entries, 1 MPN entries, 1 options, 0 transients, 0 cache keys.")

	_, ok := f.catalog.Meta(1, models.MetaKeyGTIN)
	assert.False(t, ok)
	_, ok = f.catalog.Option(models.OptionPluginVersion)
	assert.False(t, ok)
}

func TestMigrate(t *testing.T) {
	f := newFixture("admin")

	_, _, err := f.execute("migrate")
	assert.ErrorIs(t, err, ErrMigrationsUnavailable)
	assert.Equal(t, 1, f.closed)

	called := 0
	f.migrate = func(ctx context.Context) (int64, error) {
		called++
		return 3, nil
	}
	out, _, err := f.execute("migrate")
	require.NoError(t, err)
	assert.Equal(t, 1, called)
	assert.Contains(t, out, "Migrations applied. Schema version: 3")

	out, _, err = f.execute("migrate", "-j")
	require.NoError(t, err)
	assert.JSONEq(t, `{"schema_version":3}`, out)

	f.migrate = func(ctx context.Context) (int64, error) { return 0, errors.New("boom") }
	_, _, err = f.execute("migrate")
	assert.EqualError(t, err, "boom")
}

func TestRollback(t *testing.T) {
	f := newFixture("admin")

	_, _, err := f.execute("rollback")
	assert.ErrorIs(t, err, ErrMigrationsUnavailable)

	var got int
	f.rollback = func(ctx context.Context, steps int) error {
		got = steps
		return nil
	}

	_, _, err = f.execute("rollback", "--steps", "0")
	assert.EqualError(t, err, "invalid steps: 0")

	out, _, err := f.execute("rollback", "--steps", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, got)
	assert.Contains(t, out, "Rolled back 2 migration(s).")
}
