package settings

import (
	"context"

	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/options"
)

// Provider resolves the configuration for one form submission.
type Provider interface {
	ForForm(ctx context.Context, formID int) (Settings, Attributes, error)
}

// StoreProvider reads settings from an options store on every call.
type StoreProvider struct {
	Store options.Store
}

func (p StoreProvider) ForForm(ctx context.Context, formID int) (Settings, Attributes, error) {
	s, err := Load(ctx, p.Store, formID)
	if err != nil {
		return Settings{}, Attributes{}, err
	}
	a, err := LoadAttributes(ctx, p.Store, formID)
	if err != nil {
		return Settings{}, Attributes{}, err
	}
	return s, a, nil
}

func (p *FileProvider) ForForm(_ context.Context, formID int) (Settings, Attributes, error) {
	doc, err := p.Current()
	if err != nil {
		return Settings{}, Attributes{}, err
	}
	s, a := doc.For(formID)
	return s, a, nil
}
