package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/unidata-tools/udunits-publish-tools/pkg/api"
)

const testCombinedDocument = `<?xml version="1.0" encoding="UTF-8"?>
<udunits-2 version="2.2.28" xmlns:u2="https://doi.org/10.5065/D6KD1WN0">
  <u2:unit-system/>
</udunits-2>
`

type uploadedComponent struct {
	directory string
	assets    map[string][]byte
}

// fakeNexus implements just enough of the raw repository REST API for the
// store: component upload, component search, component delete, and asset
// search-and-download of the current combined document.
type fakeNexus struct {
	repository string

	current []uploadedComponent
	uploads []uploadedComponent
	deletes []string

	failUploads bool
}

func (f *fakeNexus) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/service/rest/v1/search/assets/download", func(w http.ResponseWriter, r *http.Request) {
		for _, c := range f.current {
			for name, data := range c.assets {
				if strings.HasSuffix(name, "udunits2_combined.xml") {
					_, _ = w.Write(data)
					return
				}
			}
		}
		http.NotFound(w, r)
	})

	mux.HandleFunc("/service/rest/v1/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("repository") != f.repository {
			http.Error(w, "unknown repository", http.StatusBadRequest)
			return
		}

		result := searchResult{}
		for i, c := range f.current {
			for name := range c.assets {
				result.Items = append(result.Items, searchItem{
					ID:   fmt.Sprintf("component-%d", i),
					Name: name,
				})
			}
		}
		_ = json.NewEncoder(w).Encode(result)
	})

	mux.HandleFunc("/service/rest/v1/components/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
			return
		}

		id := strings.TrimPrefix(r.URL.Path, "/service/rest/v1/components/")
		f.deletes = append(f.deletes, id)
		f.current = nil
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/service/rest/v1/components", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
			return
		}

		if f.failUploads {
			http.Error(w, "forced failure", http.StatusInternalServerError)
			return
		}

		err := r.ParseMultipartForm(1 << 20)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		component := uploadedComponent{
			directory: r.FormValue("raw.directory"),
			assets:    map[string][]byte{},
		}

		for field, headers := range r.MultipartForm.File {
			file, err := headers[0].Open()
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			data, err := io.ReadAll(file)
			_ = file.Close()
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			name := r.FormValue(field + ".filename")
			if len(name) == 0 {
				http.Error(w, fmt.Sprintf("missing filename for %q", field), http.StatusBadRequest)
				return
			}
			component.assets[component.directory+name] = data
		}

		f.uploads = append(f.uploads, component)
		if strings.HasSuffix(strings.TrimSuffix(component.directory, "/"), "current") {
			f.current = append(f.current, component)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func testArtifacts() []api.Artifact {
	return []api.Artifact{
		{Name: "udunits2_combined.xml", Data: []byte(testCombinedDocument)},
		{Name: "UDUNITS-2_COPYRIGHT", Data: []byte("copyright text\n")},
	}
}

func TestNexusStoreCurrentVersion(t *testing.T) {
	fake := &fakeNexus{repository: "udunits-2-docs"}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	store := NewNexusStore(server.URL, "udunits-2-docs", "udunits2", "udunits2_combined.xml", Credentials{})

	_, err := store.CurrentVersion(context.Background())
	if !errors.Is(err, ErrNotPublished) {
		t.Fatalf("expected ErrNotPublished, got %v", err)
	}

	fake.current = []uploadedComponent{
		{
			directory: "/udunits2/current/",
			assets: map[string][]byte{
				"/udunits2/current/udunits2_combined.xml": []byte(testCombinedDocument),
			},
		},
	}

	version, err := store.CurrentVersion(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != "2.2.28" {
		t.Errorf("expected version %q, got %q", "2.2.28", version)
	}
}

func TestNexusStoreCurrentVersionInvalid(t *testing.T) {
	fake := &fakeNexus{repository: "udunits-2-docs"}
	fake.current = []uploadedComponent{
		{
			directory: "/udunits2/current/",
			assets: map[string][]byte{
				"/udunits2/current/udunits2_combined.xml": []byte(`<udunits-2 version="garbage"/>`),
			},
		},
	}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	store := NewNexusStore(server.URL, "udunits-2-docs", "udunits2", "udunits2_combined.xml", Credentials{})

	_, err := store.CurrentVersion(context.Background())
	if err == nil || !strings.Contains(err.Error(), "does not appear to be an actual version number") {
		t.Fatalf("expected a version validation error, got %v", err)
	}
}

func TestNexusStorePublish(t *testing.T) {
	fake := &fakeNexus{repository: "udunits-2-docs"}
	fake.current = []uploadedComponent{
		{
			directory: "/udunits2/current/",
			assets: map[string][]byte{
				"/udunits2/current/udunits2_combined.xml": []byte("old"),
				"/udunits2/current/UDUNITS-2_COPYRIGHT":   []byte("old"),
			},
		},
	}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	store := NewNexusStore(server.URL, "udunits-2-docs", "udunits2", "udunits2_combined.xml", Credentials{Username: "publisher", Password: "secret"})

	err := store.Publish(context.Background(), "2.2.28", testArtifacts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var directories []string
	for _, upload := range fake.uploads {
		directories = append(directories, upload.directory)
	}
	expectedDirectories := []string{"/udunits2/2.2.28/", "/udunits2/current/"}
	if !reflect.DeepEqual(directories, expectedDirectories) {
		t.Errorf("expected upload directories %v, got %v", expectedDirectories, directories)
	}

	if len(fake.deletes) == 0 {
		t.Error("expected the old current components to be deleted")
	}

	// The current artifacts are byte identical to the versioned ones.
	versioned, current := fake.uploads[0], fake.uploads[1]
	for _, artifact := range testArtifacts() {
		versionedData := versioned.assets["/udunits2/2.2.28/"+artifact.Name]
		currentData := current.assets["/udunits2/current/"+artifact.Name]
		if !reflect.DeepEqual(versionedData, artifact.Data) {
			t.Errorf("versioned %q differs from the input artifact", artifact.Name)
		}
		if !reflect.DeepEqual(currentData, versionedData) {
			t.Errorf("current %q differs from the versioned artifact", artifact.Name)
		}
	}
}

func TestNexusStorePublishFailureLeavesCurrentAlone(t *testing.T) {
	fake := &fakeNexus{repository: "udunits-2-docs", failUploads: true}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	store := NewNexusStore(server.URL, "udunits-2-docs", "udunits2", "udunits2_combined.xml", Credentials{})

	err := store.Publish(context.Background(), "2.2.28", testArtifacts())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "can't publish versioned artifacts") {
		t.Errorf("expected a versioned publish error, got %v", err)
	}

	if len(fake.uploads) != 0 {
		t.Errorf("expected no uploads to be recorded, got %d", len(fake.uploads))
	}
	if len(fake.deletes) != 0 {
		t.Errorf("expected current to be untouched, got %d deletes", len(fake.deletes))
	}
}
