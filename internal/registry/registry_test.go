package registry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuya-switch/internal/domain"
	"tuya-switch/internal/registry"
)

const sampleRegistry = `[
  {"name": "Desk Plug", "id": "abc", "ip": "10.0.0.5", "key": "k", "type": "outlet", "ver": "3.3"},
  {"name": "Hall Bulb", "id": "def", "ip": "10.0.0.6", "key": "0123456789abcdef", "type": "bulb", "ver": 3.1, "mac": "AA:BB:CC:DD:EE:FF"},
  {"name": "Desk Plug", "id": "ghi", "ip": "10.0.0.7", "key": "k2", "type": "outlet", "ver": "3.3"}
]`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuya-devices.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	reg, err := registry.Load(writeFile(t, sampleRegistry))
	require.NoError(t, err)

	records := reg.Records()
	require.Len(t, records, 3)

	assert.Equal(t, domain.Record{
		ID:      "abc",
		IP:      "10.0.0.5",
		Key:     "k",
		Type:    domain.DeviceTypeOutlet,
		Version: "3.3",
		Fields: map[string]string{
			"name": "Desk Plug",
			"id":   "abc",
			"ip":   "10.0.0.5",
			"key":  "k",
			"type": "outlet",
			"ver":  "3.3",
		},
	}, records[0])

	assert.Equal(t, "3.1", records[1].Version)
	assert.Equal(t, domain.DeviceTypeBulb, records[1].Type)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := registry.Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRegistryNotFound)
	assert.Equal(t, domain.ExitFileNotFound, domain.ExitCode(err))
}

func TestLoad_Directory(t *testing.T) {
	_, err := registry.Load(t.TempDir())
	assert.ErrorIs(t, err, domain.ErrRegistryNotFound)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"malformed":     `[{"id": "abc",`,
		"trailing data": `[] []`,
		"not an array":  `{"id": "abc"}`,
		"not an object": `[{"id": "abc"}, "def"]`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := registry.Load(writeFile(t, content))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrRegistryInvalid)
			assert.Equal(t, domain.ExitParseError, domain.ExitCode(err))
		})
	}
}

func TestLoad_IncompleteNeighbours(t *testing.T) {
	reg, err := registry.Load(writeFile(t, `[
  {"id": "abc", "ip": "10.0.0.5", "key": "k", "type": "outlet", "ver": "3.3", "dps": {"1": true}},
  {"name": "old plug", "id": "zzz", "ip": "10.0.0.9"},
  {"name": "fan", "id": "fff", "ip": "10.0.0.10", "key": "k", "type": "fan", "ver": "3.3", "tags": ["a"]}
]`))
	require.NoError(t, err)
	require.Len(t, reg.Records(), 3)

	rec, ok := reg.Find("abc")
	require.True(t, ok)
	assert.NoError(t, rec.Validate())
	assert.NotContains(t, rec.Fields, "dps", "nested values are dropped")

	rec, ok = reg.Find("old plug")
	require.True(t, ok)
	assert.ErrorIs(t, rec.Validate(), domain.ErrIncompleteRecord)

	rec, ok = reg.Find("fff")
	require.True(t, ok)
	assert.NotContains(t, rec.Fields, "tags")
	assert.ErrorIs(t, rec.Validate(), domain.ErrIncompleteRecord)
}

func TestParse_SchemaErrorLocation(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	_, err = registry.Parse([]byte(`{"id": "abc"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file:///tuya-devices.schema.json")
	assert.NotContains(t, err.Error(), wd)
}

func TestRegistry_Find(t *testing.T) {
	records, err := registry.Parse([]byte(sampleRegistry))
	require.NoError(t, err)
	reg := registry.New(records)

	rec, ok := reg.Find("abc")
	require.True(t, ok)
	assert.Equal(t, "abc", rec.ID)

	rec, ok = reg.Find("aa:bb:cc:dd:ee:ff")
	require.True(t, ok)
	assert.Equal(t, "def", rec.ID)

	rec, ok = reg.Find("10.0.0.7")
	require.True(t, ok)
	assert.Equal(t, "ghi", rec.ID)

	rec, ok = reg.Find("desk plug")
	require.True(t, ok)
	assert.Equal(t, "abc", rec.ID, "first matching record wins")

	_, ok = reg.Find("kitchen")
	assert.False(t, ok)
}

func TestResolvePath(t *testing.T) {
	base := filepath.Join(string(filepath.Separator), "opt", "tuya")
	abs := filepath.Join(string(filepath.Separator), "etc", "devices.json")

	assert.Equal(t, filepath.Join(base, registry.DefaultFile), registry.ResolvePath("", base))
	assert.Equal(t, filepath.Join(base, "other.json"), registry.ResolvePath("other.json", base))
	assert.Equal(t, abs, registry.ResolvePath(abs, base))
	assert.Equal(t, "other.json", registry.ResolvePath("other.json", ""))
}
