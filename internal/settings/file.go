package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// rawOverride holds per-form overrides; nil fields inherit from global.
type rawOverride struct {
	Enabled     *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Variant     string   `json:"variant,omitempty" yaml:"variant,omitempty"`
	SiteKey     string   `json:"site_key,omitempty" yaml:"site_key,omitempty"`
	SecretKey   string   `json:"secret_key,omitempty" yaml:"secret_key,omitempty"`
	SecretRef   string   `json:"secret_ref,omitempty" yaml:"secret_ref,omitempty"`
	Threshold   *float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	BadgeHidden *bool    `json:"badge_hidden,omitempty" yaml:"badge_hidden,omitempty"`
	Size        string   `json:"size,omitempty" yaml:"size,omitempty"`
	Theme       string   `json:"theme,omitempty" yaml:"theme,omitempty"`
	Notice      string   `json:"notice,omitempty" yaml:"notice,omitempty"`
	Messages    Messages `json:"messages,omitempty" yaml:"messages,omitempty"`
	CaptchaType string   `json:"captcha_type,omitempty" yaml:"captcha_type,omitempty"`
}

type rawFile struct {
	Global rawOverride            `json:"global" yaml:"global"`
	Forms  map[string]rawOverride `json:"forms,omitempty" yaml:"forms,omitempty"`
}

// Document is a parsed settings file.
type Document struct {
	Global      Settings
	GlobalAttrs Attributes
	Forms       map[int]Settings
	FormAttrs   map[int]Attributes
}

// For returns the settings and attributes that apply to formID.
func (d *Document) For(formID int) (Settings, Attributes) {
	s, ok := d.Forms[formID]
	if !ok {
		s = d.Global
	}
	a, ok := d.FormAttrs[formID]
	if !ok {
		a = d.GlobalAttrs
	}
	return s, a
}

// ParseFile decodes a JSON or YAML settings document. The format is picked
// from the file extension; anything other than .json is read as YAML.
func ParseFile(name string, data []byte) (*Document, error) {
	var raw rawFile
	if strings.EqualFold(filepath.Ext(name), ".json") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("could not parse settings file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("could not parse settings file: %w", err)
	}

	global, globalAttrs, err := apply(Defaults(), Attributes{CaptchaType: CaptchaRecaptcha}, raw.Global)
	if err != nil {
		return nil, fmt.Errorf("global: %w", err)
	}
	if err := global.Validate(); err != nil {
		return nil, fmt.Errorf("global: %w", err)
	}

	doc := &Document{
		Global:      global,
		GlobalAttrs: globalAttrs,
		Forms:       make(map[int]Settings, len(raw.Forms)),
		FormAttrs:   make(map[int]Attributes, len(raw.Forms)),
	}
	for key, override := range raw.Forms {
		id, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("form key %q is not a form id", key)
		}
		s, a, err := apply(global, globalAttrs, override)
		if err != nil {
			return nil, fmt.Errorf("form %d: %w", id, err)
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("form %d: %w", id, err)
		}
		doc.Forms[id] = s
		doc.FormAttrs[id] = a
	}
	return doc, nil
}

func apply(base Settings, attrs Attributes, raw rawOverride) (Settings, Attributes, error) {
	s := base
	if raw.Enabled != nil {
		s.Enabled = *raw.Enabled
	}
	if raw.Variant != "" {
		v, err := ParseVariant(raw.Variant)
		if err != nil {
			return Settings{}, Attributes{}, err
		}
		s.Variant = v
	}
	if v := strings.TrimSpace(raw.SiteKey); v != "" {
		s.SiteKey = v
	}
	if v := strings.TrimSpace(raw.SecretKey); v != "" {
		s.SecretKey = v
	}
	if v := strings.TrimSpace(raw.SecretRef); v != "" {
		s.SecretRef = v
	}
	if raw.Threshold != nil {
		s.Threshold = *raw.Threshold
	}
	if raw.BadgeHidden != nil {
		s.BadgeHidden = *raw.BadgeHidden
	}
	if v := strings.TrimSpace(raw.Size); v != "" {
		s.Size = v
	}
	if v := strings.TrimSpace(raw.Theme); v != "" {
		s.Theme = v
	}
	if v := SanitizeNotice(raw.Notice); v != "" {
		s.Notice = v
	}
	if v := strings.TrimSpace(raw.Messages.Unverified); v != "" {
		s.Messages.Unverified = v
	}
	if v := strings.TrimSpace(raw.Messages.Expired); v != "" {
		s.Messages.Expired = v
	}
	if v := strings.TrimSpace(raw.Messages.Invalid); v != "" {
		s.Messages.Invalid = v
	}
	if v := strings.TrimSpace(raw.CaptchaType); v != "" {
		attrs.CaptchaType = v
	}
	return s, attrs, nil
}

// MarshalYAML renders d in the settings file layout.
func (d *Document) MarshalYAML() (any, error) {
	out := rawFile{Global: toOverride(d.Global, d.GlobalAttrs)}
	if len(d.Forms) > 0 {
		out.Forms = make(map[string]rawOverride, len(d.Forms))
		for id, s := range d.Forms {
			a, ok := d.FormAttrs[id]
			if !ok {
				a = d.GlobalAttrs
			}
			out.Forms[strconv.Itoa(id)] = toOverride(s, a)
		}
	}
	return out, nil
}

func toOverride(s Settings, a Attributes) rawOverride {
	enabled, badge, threshold := s.Enabled, s.BadgeHidden, s.Threshold
	return rawOverride{
		Enabled:     &enabled,
		Variant:     string(s.Variant),
		SiteKey:     s.SiteKey,
		SecretKey:   s.SecretKey,
		SecretRef:   s.SecretRef,
		Threshold:   &threshold,
		BadgeHidden: &badge,
		Size:        s.Size,
		Theme:       s.Theme,
		Notice:      s.Notice,
		Messages:    s.Messages,
		CaptchaType: a.CaptchaType,
	}
}

// FileProvider serves settings from a file, reloading it when its
// modification time changes.
type FileProvider struct {
	path string

	mu      sync.Mutex
	doc     *Document
	modTime time.Time
}

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Current returns the latest document, reparsing the file when it changed.
func (p *FileProvider) Current() (*Document, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		return nil, fmt.Errorf("could not stat settings file: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.doc != nil && info.ModTime().Equal(p.modTime) {
		return p.doc, nil
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("could not open settings file: %w", err)
	}
	doc, err := ParseFile(p.path, data)
	if err != nil {
		return nil, err
	}
	p.doc = doc
	p.modTime = info.ModTime()
	return p.doc, nil
}
