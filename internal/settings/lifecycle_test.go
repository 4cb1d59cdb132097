package settings

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/options"
)

func seededStore(t *testing.T) *options.Memory {
	t.Helper()
	ctx := context.Background()
	store := options.NewMemory()
	require.NoError(t, store.Put(ctx, "sform_settings", map[string]any{"form_width": "100%"}))
	require.NoError(t, store.Put(ctx, "sform_attributes", map[string]any{"label_position": "top"}))
	require.NoError(t, store.Put(ctx, "sform_2_settings", map[string]any{"recaptcha_site_key": "two"}))
	require.NoError(t, store.Put(ctx, "sform_2_attributes", map[string]any{"captcha_type": "recaptcha"}))
	return store
}

func TestForms(t *testing.T) {
	store := seededStore(t)
	require.NoError(t, store.Put(context.Background(), "sform_10_attributes", map[string]any{}))

	ids, err := Forms(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 10}, ids)
}

func TestActivate_MergesDefaultsWithoutClobbering(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	require.NoError(t, Activate(ctx, store))

	main, _, err := store.Get(ctx, "sform_settings")
	require.NoError(t, err)
	assert.Equal(t, "100%", main["form_width"])
	assert.Equal(t, false, main["recaptcha"])
	assert.Equal(t, "v2_checkbox", main["recaptcha_type"])

	two, _, err := store.Get(ctx, "sform_2_settings")
	require.NoError(t, err)
	assert.Equal(t, "two", two["recaptcha_site_key"])

	attrs, err := LoadAttributes(ctx, store, 2)
	require.NoError(t, err)
	assert.Equal(t, CaptchaRecaptcha, attrs.CaptchaType)

	v, err := InstalledVersion(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, Version, v)
}

func TestActivate_CreatesMainOnEmptyStore(t *testing.T) {
	ctx := context.Background()
	store := options.NewMemory()
	require.NoError(t, Activate(ctx, store))

	_, ok, err := store.Get(ctx, "sform_settings")
	require.NoError(t, err)
	assert.True(t, ok)

	ids, err := Forms(ctx, store)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCheckVersion(t *testing.T) {
	ctx := context.Background()
	store := options.NewMemory()

	ran, err := CheckVersion(ctx, store)
	require.NoError(t, err)
	assert.True(t, ran)

	ran, err = CheckVersion(ctx, store)
	require.NoError(t, err)
	assert.False(t, ran)

	require.NoError(t, store.Put(ctx, "sform_recaptcha_version", map[string]any{"version": "1.0.0"}))
	ran, err = CheckVersion(ctx, store)
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestDeactivate(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	_, err := Save(ctx, store, MainForm, validEnabled(VariantCheckbox))
	require.NoError(t, err)

	require.NoError(t, Deactivate(ctx, store))

	for _, id := range []int{MainForm, 2} {
		s, a, err := StoreProvider{Store: store}.ForForm(ctx, id)
		require.NoError(t, err)
		assert.False(t, s.Enabled, "form %d", id)
		assert.Equal(t, CaptchaMath, a.CaptchaType, "form %d", id)
	}
}

func TestUninstall(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	require.NoError(t, Activate(ctx, store))

	require.NoError(t, Uninstall(ctx, store))

	main, _, err := store.Get(ctx, "sform_settings")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"form_width": "100%"}, main)

	attrs, _, err := store.Get(ctx, "sform_2_attributes")
	require.NoError(t, err)
	assert.Empty(t, attrs)

	v, err := InstalledVersion(ctx, store)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, Uninstall(ctx, store), "uninstall twice is harmless")
}

// wrappingStore adds context to Delete errors the way a database backed
// store does.
type wrappingStore struct {
	*options.Memory
}

func (w wrappingStore) Delete(ctx context.Context, name string) error {
	if err := w.Memory.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete option %q: %w", name, err)
	}
	return nil
}

func TestUninstall_ToleratesWrappedNotFound(t *testing.T) {
	ctx := context.Background()
	store := wrappingStore{seededStore(t)}

	require.NoError(t, Uninstall(ctx, store), "never activated")

	require.NoError(t, Activate(ctx, store))
	require.NoError(t, Uninstall(ctx, store))
	require.NoError(t, Uninstall(ctx, store))
}

func TestImportExport(t *testing.T) {
	ctx := context.Background()
	store := options.NewMemory()

	doc, err := ParseFile("settings.yaml", []byte(yamlDoc))
	require.NoError(t, err)
	require.NoError(t, Import(ctx, store, doc))

	out, err := Export(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, doc.Global, out.Global)
	assert.Equal(t, doc.Forms, out.Forms)
	assert.Equal(t, doc.FormAttrs, out.FormAttrs)
}
