package boltstore_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/iotaledger/streams-go/pkg/streamserr"
	"github.com/iotaledger/streams-go/pkg/transport/memtransport"
	"github.com/iotaledger/streams-go/pkg/user"
	"github.com/iotaledger/streams-go/pkg/userstore/boltstore"
)

func TestSaveLoadDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := boltstore.Open(filepath.Join(dir, "streams.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if err := store.Save("alice", []byte("snapshot-bytes")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load("alice")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, []byte("snapshot-bytes")) {
		t.Fatalf("loaded bytes mismatch: got %q", got)
	}

	labels, err := store.Labels()
	if err != nil {
		t.Fatalf("Labels: %v", err)
	}
	if len(labels) != 1 || labels[0] != "alice" {
		t.Fatalf("unexpected labels: %v", labels)
	}

	if err := store.Delete("alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load("alice"); !streamserr.Is(err, streamserr.Unexpected) {
		t.Fatalf("expected Unexpected after delete, got %v", err)
	}
}

func TestSaveLoadRealUserSnapshot(t *testing.T) {
	ctx := context.Background()
	tr := memtransport.New()
	author, err := user.New([]byte("author-seed"), tr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := author.CreateStream(ctx, "root"); err != nil {
		t.Fatalf("CreateStream: %v", err)
	}

	snap, err := author.Snapshot("hunter2")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	dir := t.TempDir()
	store, err := boltstore.Open(filepath.Join(dir, "streams.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if err := store.Save("author", snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load("author")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	restored, err := user.RestoreUser(loaded, "hunter2", tr)
	if err != nil {
		t.Fatalf("RestoreUser: %v", err)
	}
	if !restored.Identifier().Equal(author.Identifier()) {
		t.Fatalf("restored identifier mismatch")
	}
	if restored.AppAddr() != author.AppAddr() {
		t.Fatalf("restored appAddr mismatch")
	}
}

func TestLoadMissingLabel(t *testing.T) {
	dir := t.TempDir()
	store, err := boltstore.Open(filepath.Join(dir, "streams.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if _, err := store.Load("nobody"); !streamserr.Is(err, streamserr.Unexpected) {
		t.Fatalf("expected Unexpected for missing label, got %v", err)
	}
}
