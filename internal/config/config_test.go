package config

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvSource_Get(t *testing.T) {
	t.Setenv("RECAPTCHA_TEST_SECRET", "s3cret")

	src := NewEnvSource()
	val, err := src.Get("RECAPTCHA_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", val)

	_, err = src.Get("RECAPTCHA_TEST_MISSING")
	assert.Error(t, err)
}

func TestManager_NilSource(t *testing.T) {
	var m *Manager
	_, err := m.Get("anything")
	assert.Error(t, err)
	assert.Empty(t, m.SourceName())

	m = NewManager(NewEnvSource())
	assert.Equal(t, "env", m.SourceName())
}

func TestManager_ReadsSource(t *testing.T) {
	t.Setenv("RECAPTCHA_TEST_REF", "resolved")

	m := NewManager(NewEnvSource())
	val, err := m.Get("RECAPTCHA_TEST_REF")
	require.NoError(t, err)
	assert.Equal(t, "resolved", val)
}

func TestNewSource_Unknown(t *testing.T) {
	_, err := NewSource("consul")
	assert.ErrorContains(t, err, "unknown config provider")
}

func TestNewVaultSource_RequiresAddress(t *testing.T) {
	t.Setenv("VAULT_ADDR", "")
	t.Setenv("VAULT_TOKEN", "")
	_, err := NewVaultSource()
	assert.Error(t, err)
}

func TestVaultSource_ReadsKVv2Value(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/kv/data/recaptcha_secret" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "root", r.Header.Get("X-Vault-Token"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"data": map[string]any{"value": "from-vault"},
				"metadata": map[string]any{
					"created_time":  "2024-01-01T00:00:00Z",
					"deletion_time": "",
					"destroyed":     false,
					"version":       1,
				},
			},
		})
	}))
	defer srv.Close()

	src, err := NewVaultSourceFor(srv.URL, "root", "kv")
	require.NoError(t, err)
	assert.Equal(t, "vault", src.Name())

	val, err := src.Get("recaptcha_secret")
	require.NoError(t, err)
	assert.Equal(t, "from-vault", val)
}

func TestVaultSource_EnvTakesPrecedence(t *testing.T) {
	t.Setenv("recaptcha_override", "from-env")

	src, err := NewVaultSourceFor("http://127.0.0.1:1", "root", "")
	require.NoError(t, err)

	val, err := src.Get("recaptcha_override")
	require.NoError(t, err)
	assert.Equal(t, "from-env", val)
}
