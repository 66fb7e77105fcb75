package store

import (
	"errors"
	"testing"
)

func TestSettings(t *testing.T) {
	settings := newTestStore(t).Settings()

	if _, err := settings.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}

	if err := settings.Set("theme", "dark"); err != nil {
		t.Fatal(err)
	}
	if err := settings.Set("theme", "light"); err != nil {
		t.Fatal(err)
	}
	if v, err := settings.Get("theme"); err != nil || v != "light" {
		t.Errorf("Get() = %q, %v; want light", v, err)
	}
}

func TestSettings_Bool(t *testing.T) {
	settings := newTestStore(t).Settings()

	if !settings.Bool(SettingActive, true) {
		t.Error("unset Bool should return the default")
	}
	if err := settings.SetBool(SettingActive, false); err != nil {
		t.Fatal(err)
	}
	if settings.Bool(SettingActive, true) {
		t.Error("Bool() = true after SetBool(false)")
	}
	if err := settings.Set(SettingActive, "maybe"); err != nil {
		t.Fatal(err)
	}
	if !settings.Bool(SettingActive, true) {
		t.Error("malformed Bool should return the default")
	}
}
