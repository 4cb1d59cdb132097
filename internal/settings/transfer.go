package settings

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/options"
)

// Import writes a parsed settings document into the store. Per-form entries
// get their own records.
func Import(ctx context.Context, store options.Store, doc *Document) error {
	if _, err := Save(ctx, store, MainForm, doc.Global); err != nil {
		return err
	}
	if err := SaveAttributes(ctx, store, MainForm, doc.GlobalAttrs); err != nil {
		return err
	}
	for id, s := range doc.Forms {
		name := SettingsOption(id)
		rec, _, err := store.Get(ctx, name)
		if err != nil {
			return fmt.Errorf("import form %d: %w", id, err)
		}
		if rec == nil {
			rec = map[string]any{}
		}
		for k, v := range toRecord(s) {
			rec[k] = v
		}
		if err := store.Put(ctx, name, rec); err != nil {
			return fmt.Errorf("import form %d: %w", id, err)
		}
		if a, ok := doc.FormAttrs[id]; ok {
			if err := SaveAttributes(ctx, store, id, a); err != nil {
				return err
			}
		}
	}
	return nil
}

// Export builds a document from the store, listing only forms with their
// own settings record.
func Export(ctx context.Context, store options.Store) (*Document, error) {
	global, attrs, err := StoreProvider{Store: store}.ForForm(ctx, MainForm)
	if err != nil {
		return nil, err
	}
	doc := &Document{
		Global:      global,
		GlobalAttrs: attrs,
		Forms:       map[int]Settings{},
		FormAttrs:   map[int]Attributes{},
	}
	ids, err := Forms(ctx, store)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok, err := store.Get(ctx, SettingsOption(id)); err != nil {
			return nil, err
		} else if !ok {
			continue
		}
		s, a, err := StoreProvider{Store: store}.ForForm(ctx, id)
		if err != nil {
			return nil, err
		}
		doc.Forms[id] = s
		doc.FormAttrs[id] = a
	}
	return doc, nil
}

// WriteFile stores doc as YAML at path.
func WriteFile(path string, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
