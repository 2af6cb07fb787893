package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/unidata-tools/udunits-publish-tools/pkg/api"
)

func TestAFSStorePublishAndCurrentVersion(t *testing.T) {
	dir := t.TempDir()
	store := NewAFSStore("file://"+dir, "udunits2_combined.xml")

	_, err := store.CurrentVersion(context.Background())
	if !errors.Is(err, ErrNotPublished) {
		t.Fatalf("expected ErrNotPublished, got %v", err)
	}

	artifacts := testArtifacts()
	err = store.Publish(context.Background(), "2.2.28", artifacts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	version, err := store.CurrentVersion(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != "2.2.28" {
		t.Errorf("expected version %q, got %q", "2.2.28", version)
	}

	for _, artifact := range artifacts {
		versioned, err := os.ReadFile(filepath.Join(dir, "2.2.28", artifact.Name))
		if err != nil {
			t.Fatalf("can't read versioned artifact: %v", err)
		}
		current, err := os.ReadFile(filepath.Join(dir, "current", artifact.Name))
		if err != nil {
			t.Fatalf("can't read current artifact: %v", err)
		}

		if !reflect.DeepEqual(versioned, artifact.Data) {
			t.Errorf("versioned %q differs from the input artifact", artifact.Name)
		}
		if !reflect.DeepEqual(current, versioned) {
			t.Errorf("current %q differs from the versioned artifact", artifact.Name)
		}
	}
}

func TestAFSStoreCurrentFollowsLatestPublish(t *testing.T) {
	dir := t.TempDir()
	store := NewAFSStore("file://"+dir, "udunits2_combined.xml")

	err := store.Publish(context.Background(), "2.2.28", testArtifacts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	newerDocument := `<?xml version="1.0" encoding="UTF-8"?>
<udunits-2 version="2.2.29" xmlns:u2="https://doi.org/10.5065/D6KD1WN0">
  <u2:unit-system/>
</udunits-2>
`
	err = store.Publish(context.Background(), "2.2.29", []api.Artifact{
		{Name: "udunits2_combined.xml", Data: []byte(newerDocument)},
		{Name: "UDUNITS-2_COPYRIGHT", Data: []byte("copyright text\n")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	version, err := store.CurrentVersion(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != "2.2.29" {
		t.Errorf("expected version %q, got %q", "2.2.29", version)
	}

	// The older versioned artifacts stay untouched.
	_, err = os.Stat(filepath.Join(dir, "2.2.28", "udunits2_combined.xml"))
	if err != nil {
		t.Errorf("expected the previously versioned artifact to survive: %v", err)
	}
}
