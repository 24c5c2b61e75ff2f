package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	conf := Default()
	tests := []struct {
		actual   interface{}
		expected interface{}
	}{
		{conf.Srid, 3857},
		{conf.HistoryItemsMax, 5},
		{conf.ActionHistoryEnabled, true},
		{conf.ActionHistoryLength, 20},
		{conf.MapCaptureSize, 800},
		{conf.MapCaptureMaxRatio, 1.25},
		{conf.InternalUser, "__internal__"},
		{conf.GeomFieldName, "geom"},
		{conf.PageSize, 20},
		{conf.MediaURL, "/media/"},
		{conf.MediaURLSecure, "/media_secure/"},
		{conf.LoginURL, "/login/"},
	}
	for _, test := range tests {
		if test.actual != test.expected {
			t.Errorf("%v != %v", test.actual, test.expected)
		}
	}
	if len(conf.Languages) != 1 || conf.Languages[0] != "en" {
		t.Errorf("unexpected default languages %v", conf.Languages)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "config.yml")
	doc := `
title: Parks
connection: postgis://localhost/parks
srid: 4326
history_items_max: 10
languages: [fr, en]
action_history_enabled: false
`
	if err := os.WriteFile(fn, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	conf, err := Load(fn)
	if err != nil {
		t.Fatal(err)
	}
	if conf.Title != "Parks" {
		t.Errorf("title %q", conf.Title)
	}
	if conf.Srid != 4326 {
		t.Errorf("srid %d", conf.Srid)
	}
	if conf.HistoryItemsMax != 10 {
		t.Errorf("history max %d", conf.HistoryItemsMax)
	}
	if conf.ActionHistoryEnabled {
		t.Error("action history still enabled")
	}
	if conf.DefaultLanguage() != "fr" {
		t.Errorf("default language %q", conf.DefaultLanguage())
	}
	// untouched keys keep their defaults
	if conf.PageSize != 20 {
		t.Errorf("page size %d", conf.PageSize)
	}
	if conf.InternalUser != "__internal__" {
		t.Errorf("internal user %q", conf.InternalUser)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatal("no error for missing file")
	}
}

func TestCheck(t *testing.T) {
	conf := Default()
	conf.Connection = "postgis://localhost/parks"
	if errs := conf.Check(); len(errs) != 0 {
		t.Fatalf("valid config rejected: %v", errs)
	}

	conf.Srid = 2154
	conf.HistoryItemsMax = 0
	conf.ConversionServer = "not-an-url"
	errs := conf.Check()
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %v", errs)
	}
}

func TestCheckCollectsAllErrors(t *testing.T) {
	conf := Config{}
	errs := conf.Check()
	if len(errs) < 5 {
		t.Errorf("zero config should fail multiple checks, got %v", errs)
	}
}
