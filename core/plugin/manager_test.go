package plugin

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/modelkit/core/fieldtype"
	"github.com/artpar/modelkit/core/schema"
)

type moneyType struct {
	name    string
	desc    string
	deps    []string
	aliases []string
	build   int
}

func (m *moneyType) TypeName() string                           { return m.name }
func (m *moneyType) Aliases() []string                          { return m.aliases }
func (m *moneyType) Validate(f schema.Field) []string           { return nil }
func (m *moneyType) CastType(f schema.Field) (string, bool)     { return "decimal:2", true }
func (m *moneyType) MigrationDefinition(f schema.Field) string  { return "decimal(\"" + f.Name + "\", 12, 2)" }
func (m *moneyType) DefaultValue(f schema.Field) any            { return f.Default }
func (m *moneyType) IsFillable(name string, f schema.Field) bool { return true }
func (m *moneyType) FactoryValue(f schema.Field) string         { return "fake().randomFloat(2)" }
func (m *moneyType) Description() string                        { return m.desc }
func (m *moneyType) Version() string                            { return "1.2.0" }
func (m *moneyType) Author() string                             { return "billing team" }
func (m *moneyType) Dependencies() []string                     { return m.deps }

type halfType struct{}

func (halfType) TypeName() string  { return "half" }
func (halfType) Aliases() []string { return nil }

func fixedClock() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

func newManager(catalog Catalog) (*Manager, *fieldtype.Registry) {
	reg := fieldtype.NewDefaultRegistry()
	return NewManager(reg, WithCatalog(catalog), WithClock(fixedClock)), reg
}

func TestValidate_ListsAllViolations(t *testing.T) {
	m, _ := newManager(nil)

	err := m.Validate(halfType{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, errors.Is(err, ErrPluginValidationFailed))
	assert.Equal(t, "half", verr.Plugin)
	assert.Len(t, verr.Problems, 7, "six missing capabilities and the description: %v", verr.Problems)

	err = m.Validate(&moneyType{name: "", desc: "", deps: []string{"ghost", "integer"}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"type name is empty", "description is empty", `dependency "ghost" is not registered`}, verr.Problems)

	assert.NoError(t, m.Validate(&moneyType{name: "money", desc: "currency amounts"}))
	assert.Error(t, m.Validate(nil))
}

func TestRegisterAndMetadata(t *testing.T) {
	m, reg := newManager(nil)

	info, err := m.Register(&moneyType{name: "money", desc: "currency amounts", aliases: []string{"cash"}}, "test")
	require.NoError(t, err)

	assert.Equal(t, "money", info.Name)
	assert.Equal(t, "currency amounts", info.Description)
	assert.Equal(t, "1.2.0", info.Version)
	assert.Equal(t, "billing team", info.Author)
	assert.Equal(t, []string{"cash"}, info.Aliases)
	assert.Equal(t, "test", info.Source)
	assert.True(t, info.Enabled)
	assert.Equal(t, fixedClock(), info.LoadedAt)
	assert.Len(t, info.LoadID, 26)

	h, err := reg.Get("cash")
	require.NoError(t, err)
	assert.Equal(t, "money", h.TypeName())

	_, err = m.Register(&moneyType{name: "money", desc: "again"}, "test")
	assert.Error(t, err)

	_, err = m.Register(&moneyType{name: "string", desc: "shadow"}, "test")
	assert.ErrorIs(t, err, fieldtype.ErrDuplicateType)

	_, err = m.Register(halfType{}, "test")
	assert.ErrorIs(t, err, ErrPluginValidationFailed)
	assert.False(t, reg.Has("half"))
}

func TestEnableDisableDependents(t *testing.T) {
	m, reg := newManager(nil)

	_, err := m.Register(&moneyType{name: "money", desc: "currency"}, "test")
	require.NoError(t, err)
	_, err = m.Register(&moneyType{name: "price", desc: "priced money", deps: []string{"money"}}, "test")
	require.NoError(t, err)

	assert.Equal(t, []string{"price"}, m.Dependents("money"))

	err = m.Disable("money")
	assert.ErrorIs(t, err, ErrPluginInUse)
	assert.True(t, reg.Has("money"))

	require.NoError(t, m.Disable("price"))
	assert.False(t, reg.Has("price"))
	require.NoError(t, m.Disable("money"))
	assert.False(t, reg.Has("money"))

	info, _ := m.Info("money")
	assert.False(t, info.Enabled)

	err = m.Enable("price")
	assert.ErrorIs(t, err, ErrPluginValidationFailed, "dependency money is disabled")

	require.NoError(t, m.Enable("money"))
	require.NoError(t, m.Enable("price"))
	assert.True(t, reg.Has("price"))

	assert.ErrorIs(t, m.Disable("nope"), ErrUnknownPlugin)
	assert.ErrorIs(t, m.Enable("nope"), ErrUnknownPlugin)
}

func TestLoadAndReload(t *testing.T) {
	builds := 0
	catalog := Catalog{
		"money": func() any {
			builds++
			return &moneyType{name: "money", desc: "currency", build: builds}
		},
	}
	m, reg := newManager(catalog)

	info, err := m.Load("money")
	require.NoError(t, err)
	assert.Equal(t, "money", info.ID)
	assert.Equal(t, "catalog:money", info.Source)

	h, _ := reg.Get("money")
	assert.Equal(t, 1, h.(*moneyType).build)

	v := reg.Version()
	_, err = m.Reload("money")
	require.NoError(t, err)
	assert.Greater(t, reg.Version(), v)

	h, _ = reg.Get("money")
	assert.Greater(t, h.(*moneyType).build, 1)

	_, err = m.Load("ghost")
	assert.ErrorIs(t, err, ErrUnknownPlugin)
	_, err = m.Reload("ghost")
	assert.ErrorIs(t, err, ErrUnknownPlugin)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "zz_billing")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "types.plugins.yaml"), []byte(`
plugins:
  - id: money
    aliases: [currency]
  - id: ghost
  - id: half
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "more.plugins.yml"), []byte(`
plugins:
  - id: price
    enabled: false
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "broken.plugins.yaml"), []byte("plugins: [{}]\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "post.yaml"), []byte("model: Post\n"), 0o644))

	m, reg := newManager(Catalog{
		"money": func() any { return &moneyType{name: "money", desc: "currency"} },
		"price": func() any { return &moneyType{name: "price", desc: "price", deps: []string{"money"}} },
		"half":  func() any { return halfType{} },
	})

	res := m.Discover(dir, filepath.Join(dir, "missing"))

	loaded := map[string]bool{}
	for _, info := range res.Loaded {
		loaded[info.Name] = info.Enabled
	}
	assert.Equal(t, map[string]bool{"money": true, "price": false}, loaded)
	assert.Len(t, res.Manifests, 3)
	require.Len(t, res.Failed, 3, "%v", res.Failed)

	failedIDs := map[string]bool{}
	for _, f := range res.Failed {
		failedIDs[f.ID] = true
	}
	assert.True(t, failedIDs["ghost"])
	assert.True(t, failedIDs["half"])
	assert.True(t, failedIDs[""], "broken manifest")

	canonical, ok := reg.Canonical("currency")
	assert.True(t, ok)
	assert.Equal(t, "money", canonical)
	assert.False(t, reg.Has("price"))
	assert.Len(t, m.List(), 2)
}

func TestRegister_AliasCollisionLeavesNothingBehind(t *testing.T) {
	m, reg := newManager(nil)
	version := reg.Version()

	_, err := m.Register(&moneyType{name: "widget", desc: "widget", aliases: []string{"gadget", "int"}}, "test")
	require.ErrorIs(t, err, fieldtype.ErrDuplicateType)

	_, tracked := m.Info("widget")
	assert.False(t, tracked)
	assert.False(t, reg.Has("widget"))
	assert.False(t, reg.Has("gadget"), "aliases before the colliding one are not kept")
	assert.Equal(t, version, reg.Version())

	canonical, _ := reg.Canonical("int")
	assert.Equal(t, "integer", canonical)
}

func TestDiscover_ManifestAliasCollisionSkipsPlugin(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "types.plugins.yaml"), []byte(`
plugins:
  - id: money
    aliases: [bigint]
`), 0o644))

	m, reg := newManager(Catalog{
		"money": func() any { return &moneyType{name: "money", desc: "currency"} },
	})
	res := m.Discover(dir)

	require.Len(t, res.Failed, 1)
	assert.Equal(t, "money", res.Failed[0].ID)
	assert.False(t, reg.Has("money"))
	assert.Empty(t, m.List())
}

func TestRediscover(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(first, "a.plugins.yaml"), []byte(`
plugins:
  - id: money
  - id: price
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(second, "b.plugins.yaml"), []byte(`
plugins:
  - id: money
  - id: stamp
`), 0o644))

	m, reg := newManager(Catalog{
		"money": func() any { return &moneyType{name: "money", desc: "currency"} },
		"price": func() any { return &moneyType{name: "price", desc: "price", deps: []string{"money"}} },
		"stamp": func() any { return &moneyType{name: "stamp", desc: "stamp"} },
	})
	res := m.Discover(first)
	require.Empty(t, res.Failed)
	manual, err := m.Register(&moneyType{name: "manual", desc: "manual"}, "test")
	require.NoError(t, err)

	res = m.Rediscover(second)
	assert.Empty(t, res.Failed, "already loaded plugins are not failures")
	assert.Equal(t, []string{"price"}, res.Disabled)
	assert.True(t, reg.Has("money"))
	assert.True(t, reg.Has("stamp"))
	assert.False(t, reg.Has("price"))
	assert.True(t, reg.Has(manual.Name), "plugins registered in code are left alone")

	res = m.Rediscover()
	assert.Equal(t, []string{"money", "stamp"}, res.Disabled)
	assert.False(t, reg.Has("money"))

	res = m.Rediscover(first)
	assert.Empty(t, res.Failed)
	assert.True(t, reg.Has("money"))
	assert.True(t, reg.Has("price"))
	assert.False(t, reg.Has("stamp"))
}
