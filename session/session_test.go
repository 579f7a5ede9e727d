package session

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jekyllbuildr/buildr/observe"
	"github.com/jekyllbuildr/buildr/store"
)

func TestStore_SaveLoadDelete(t *testing.T) {
	root := t.TempDir()
	s := New(store.New(root), nil)
	ctx := context.Background()

	if _, ok := s.Load(ctx); ok {
		t.Fatal("expected no credential in empty store")
	}

	cred := Credential{IDToken: "a.b.c", DisplayName: "Ada", Role: "admin"}
	if err := s.Save(ctx, cred); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, ok := s.Load(ctx)
	if !ok {
		t.Fatal("expected credential after Save")
	}
	if got != cred {
		t.Errorf("Load() = %+v, want %+v", got, cred)
	}

	raw, err := os.ReadFile(filepath.Join(root, FileName))
	if err != nil {
		t.Fatal(err)
	}
	var onDisk map[string]string
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatal(err)
	}
	if onDisk["idToken"] != "a.b.c" || onDisk["displayName"] != "Ada" || onDisk["role"] != "admin" {
		t.Errorf("unexpected file content: %s", raw)
	}

	if err := s.Delete(ctx); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if _, ok := s.Load(ctx); ok {
		t.Error("credential still present after Delete")
	}
}

func TestStore_SaveReplaces(t *testing.T) {
	s := New(store.New(t.TempDir()), nil)
	ctx := context.Background()

	_ = s.Save(ctx, Credential{IDToken: "old"})
	_ = s.Save(ctx, Credential{IDToken: "new"})

	got, _ := s.Load(ctx)
	if got.IDToken != "new" {
		t.Errorf("IDToken = %q, want new", got.IDToken)
	}
}

func TestStore_CorruptFileIsAbsent(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	s := New(store.New(root), observe.NewLoggerWithWriter("warn", &buf))

	if _, ok := s.Load(context.Background()); ok {
		t.Fatal("corrupt file should be reported absent")
	}
	if !strings.Contains(buf.String(), "session file corrupt") {
		t.Errorf("expected warning to be logged, got %q", buf.String())
	}
}

func TestCredential_Empty(t *testing.T) {
	if !(Credential{}).Empty() {
		t.Error("zero credential should be empty")
	}
	if (Credential{IDToken: "x"}).Empty() {
		t.Error("credential with token should not be empty")
	}
}
