package settings

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/options"
)

var formOptionPattern = regexp.MustCompile(`^sform_(\d+)_(settings|attributes)$`)

// Forms lists the ids of forms other than the main one that own a record.
func Forms(ctx context.Context, store options.Store) ([]int, error) {
	names, err := store.Names(ctx, "sform_")
	if err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	var ids []int
	for _, name := range names {
		m := formOptionPattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil || id == MainForm || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// Activate seeds default settings and attributes. The main form records are
// created when missing; other forms are only touched when they already have
// a record. Values an operator already stored are kept.
func Activate(ctx context.Context, store options.Store) error {
	defaults := toRecord(Defaults())
	defaultAttrs := map[string]any{keyCaptchaType: DefaultAttributes().CaptchaType}

	err := eachForm(ctx, store, func(formID int) error {
		if err := mergeMissing(ctx, store, SettingsOption(formID), defaults, formID == MainForm); err != nil {
			return err
		}
		return mergeMissing(ctx, store, AttributesOption(formID), defaultAttrs, formID == MainForm)
	})
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	return store.Put(ctx, versionOption, map[string]any{"version": Version})
}

// CheckVersion reruns activation when the stored version differs from
// Version. It reports whether activation ran.
func CheckVersion(ctx context.Context, store options.Store) (bool, error) {
	rec, _, err := store.Get(ctx, versionOption)
	if err != nil {
		return false, fmt.Errorf("check version: %w", err)
	}
	if stringValue(rec, "version", "") == Version {
		return false, nil
	}
	return true, Activate(ctx, store)
}

// InstalledVersion returns the recorded version, empty when never activated.
func InstalledVersion(ctx context.Context, store options.Store) (string, error) {
	rec, _, err := store.Get(ctx, versionOption)
	if err != nil {
		return "", err
	}
	return stringValue(rec, "version", ""), nil
}

// Deactivate switches reCAPTCHA off and puts every form back on the math captcha.
func Deactivate(ctx context.Context, store options.Store) error {
	err := eachForm(ctx, store, func(formID int) error {
		if err := update(ctx, store, SettingsOption(formID), func(rec map[string]any) {
			rec[keyEnabled] = false
		}); err != nil {
			return err
		}
		return update(ctx, store, AttributesOption(formID), func(rec map[string]any) {
			rec[keyCaptchaType] = CaptchaMath
		})
	})
	if err != nil {
		return fmt.Errorf("deactivate: %w", err)
	}
	return nil
}

// Uninstall strips every add-on key from settings and attributes records
// and forgets the installed version. Host keys are left alone.
func Uninstall(ctx context.Context, store options.Store) error {
	err := eachForm(ctx, store, func(formID int) error {
		if err := update(ctx, store, SettingsOption(formID), func(rec map[string]any) {
			for _, k := range settingsKeys {
				delete(rec, k)
			}
		}); err != nil {
			return err
		}
		return update(ctx, store, AttributesOption(formID), func(rec map[string]any) {
			delete(rec, keyCaptchaType)
		})
	})
	if err != nil {
		return fmt.Errorf("uninstall: %w", err)
	}
	if err := store.Delete(ctx, versionOption); err != nil && !errors.Is(err, options.ErrNotFound) {
		return fmt.Errorf("uninstall: %w", err)
	}
	return nil
}

func eachForm(ctx context.Context, store options.Store, fn func(formID int) error) error {
	ids, err := Forms(ctx, store)
	if err != nil {
		return err
	}
	for _, id := range append([]int{MainForm}, ids...) {
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}

func mergeMissing(ctx context.Context, store options.Store, name string, defaults map[string]any, create bool) error {
	rec, ok, err := store.Get(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		if !create {
			return nil
		}
		rec = map[string]any{}
	}
	for k, v := range defaults {
		if _, present := rec[k]; !present {
			rec[k] = v
		}
	}
	return store.Put(ctx, name, rec)
}

// update rewrites an existing record; missing records are skipped.
func update(ctx context.Context, store options.Store, name string, fn func(map[string]any)) error {
	rec, ok, err := store.Get(ctx, name)
	if err != nil || !ok {
		return err
	}
	fn(rec)
	return store.Put(ctx, name, rec)
}
