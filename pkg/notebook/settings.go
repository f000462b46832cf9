package notebook

import (
	"context"
	"slices"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/typed"
)

// Settings returns the stored settings, or the defaults before onboarding.
func (nb *Notebook) Settings(ctx context.Context) (core.Settings, error) {
	s, err := typed.Settings.Get(ctx, nb.store, core.SettingsID)
	if core.IsNotFound(err) {
		return core.DefaultSettings(), nil
	}
	return s, err
}

// Onboarded reports whether settings were ever saved.
func (nb *Notebook) Onboarded(ctx context.Context) (bool, error) {
	_, err := typed.Settings.Get(ctx, nb.store, core.SettingsID)
	if core.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// SaveSettings replaces the settings, filling empty fields with defaults.
func (nb *Notebook) SaveSettings(ctx context.Context, s core.Settings) (core.Settings, error) {
	s = withDefaults(s)
	ctx = context.WithValue(ctx, core.ChangeReasonKey, "chore(settings): update")
	if err := nb.store.Transact(ctx, func(tx core.Tx) error {
		return typed.Settings.Put(ctx, tx, s)
	}); err != nil {
		return core.Settings{}, err
	}
	nb.publish(Event{Kind: EventSettingsChanged, Collection: core.CollectionSettings, Key: core.SettingsID})
	return s, nil
}

func withDefaults(s core.Settings) core.Settings {
	d := core.DefaultSettings()
	s.ID = core.SettingsID
	if s.UILanguage == "" {
		s.UILanguage = d.UILanguage
	}
	if s.AILanguage == "" {
		s.AILanguage = d.AILanguage
	}
	if s.Theme != core.ThemeLight {
		s.Theme = d.Theme
	}
	if !slices.Contains([]string{core.ProfileMaxQuality, core.ProfileBalanced, core.ProfileFast}, s.PerformanceProfile) {
		s.PerformanceProfile = d.PerformanceProfile
	}
	return s
}

// Onboard completes the first run: it saves the settings and seeds the
// welcome note and the prebuilt templates. Running it again only saves
// the settings.
func (nb *Notebook) Onboard(ctx context.Context, s core.Settings) (core.Settings, error) {
	done, err := nb.Onboarded(ctx)
	if err != nil {
		return core.Settings{}, err
	}
	saved, err := nb.SaveSettings(ctx, s)
	if err != nil || done {
		return saved, err
	}
	if err := nb.seed(ctx); err != nil {
		return saved, err
	}
	return saved, nil
}
