package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Dir  string `yaml:"dir"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port < 0 {
		return errors.New("port must not be negative")
	}
	return nil
}

func TestDecode_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "blog")
	t.Setenv("SAMPLE_EMPTY", "")

	var s sample
	in := "name: ${SAMPLE_NAME}\ndir: ${SAMPLE_EMPTY:-./pages}\nport: 8080\n"
	if err := Decode(strings.NewReader(in), &s); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.Name != "blog" || s.Dir != "./pages" || s.Port != 8080 {
		t.Errorf("got %+v", s)
	}
}

func TestDecode_UnknownField(t *testing.T) {
	var s sample
	err := Decode(strings.NewReader("name: x\nnmae: y\n"), &s)
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestDecode_Validates(t *testing.T) {
	var s sample
	err := Decode(strings.NewReader("port: -1\n"), &s)
	if err == nil || !strings.Contains(err.Error(), "port must not be negative") {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestDecode_EmptyInputKeepsDefaults(t *testing.T) {
	s := sample{Name: "default"}
	if err := Decode(strings.NewReader(""), &s); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.Name != "default" {
		t.Errorf("name = %q, want default kept", s.Name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var s sample
	err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &s)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want os.ErrNotExist", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("name: site\nport: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "site" || s.Port != 1 {
		t.Errorf("got %+v", s)
	}
}
