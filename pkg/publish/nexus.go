package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/unidata-tools/udunits-publish-tools/pkg/api"
)

const (
	componentsPath    = "/service/rest/v1/components"
	searchPath        = "/service/rest/v1/search"
	assetDownloadPath = "/service/rest/v1/search/assets/download"
)

// Credentials authenticate writes against the Nexus server. Empty
// credentials make all requests anonymous.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) empty() bool {
	return len(c.Username) == 0 && len(c.Password) == 0
}

// NexusStore publishes artifacts into a Sonatype Nexus raw repository
// through its components REST API.
type NexusStore struct {
	baseURL          string
	repository       string
	directory        string
	combinedFileName string
	credentials      Credentials

	client *http.Client
}

func NewNexusStore(baseURL, repository, directory, combinedFileName string, credentials Credentials) *NexusStore {
	return &NexusStore{
		baseURL:          strings.TrimRight(baseURL, "/"),
		repository:       repository,
		directory:        directory,
		combinedFileName: combinedFileName,
		credentials:      credentials,

		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (s *NexusStore) endpoint(p string, query url.Values) string {
	return s.baseURL + p + "?" + query.Encode()
}

func (s *NexusStore) do(req *http.Request) (*http.Response, error) {
	if !s.credentials.empty() {
		req.SetBasicAuth(s.credentials.Username, s.credentials.Password)
	}

	return s.client.Do(req)
}

func (s *NexusStore) CurrentVersion(ctx context.Context) (string, error) {
	query := url.Values{
		"repository": []string{s.repository},
		"name":       []string{path.Join(s.directory, currentDirectory, s.combinedFileName)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(assetDownloadPath, query), nil)
	if err != nil {
		return "", err
	}

	resp, err := s.do(req)
	if err != nil {
		return "", fmt.Errorf("can't fetch current combined document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		klog.V(2).Info("Current combined document does not exist on the server yet.")
		return "", ErrNotPublished
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("can't fetch current combined document: unexpected status %q", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("can't read current combined document: %w", err)
	}

	return documentVersion(data)
}

func (s *NexusStore) Publish(ctx context.Context, version string, artifacts []api.Artifact) error {
	versionedDir := "/" + path.Join(s.directory, version) + "/"
	currentDir := "/" + path.Join(s.directory, currentDirectory) + "/"

	klog.V(2).Infof("Publishing versioned artifacts into %q.", versionedDir)
	err := s.upload(ctx, versionedDir, artifacts)
	if err != nil {
		return fmt.Errorf("can't publish versioned artifacts: %w", err)
	}

	err = s.clearCurrent(ctx)
	if err != nil {
		return fmt.Errorf("can't clear current artifacts: %w", err)
	}

	klog.V(2).Infof("Publishing current artifacts into %q.", currentDir)
	err = s.upload(ctx, currentDir, artifacts)
	if err != nil {
		return fmt.Errorf("can't publish current artifacts: %w", err)
	}

	return nil
}

// upload posts all artifacts as one raw component into the given
// repository directory.
func (s *NexusStore) upload(ctx context.Context, directory string, artifacts []api.Artifact) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	err := writer.WriteField("raw.directory", directory)
	if err != nil {
		return err
	}

	for i, artifact := range artifacts {
		field := fmt.Sprintf("raw.asset%d", i+1)

		part, err := writer.CreateFormFile(field, artifact.Name)
		if err != nil {
			return err
		}
		_, err = part.Write(artifact.Data)
		if err != nil {
			return err
		}

		err = writer.WriteField(field+".filename", artifact.Name)
		if err != nil {
			return err
		}
	}

	err = writer.Close()
	if err != nil {
		return err
	}

	query := url.Values{
		"repository": []string{s.repository},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(componentsPath, query), &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("can't upload component into %q: unexpected status %q", directory, resp.Status)
	}

	return nil
}

type searchResult struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// clearCurrent removes everything under the current directory. The search
// API has to be used to find the component ids, which are then deleted one
// by one.
func (s *NexusStore) clearCurrent(ctx context.Context) error {
	query := url.Values{
		"repository": []string{s.repository},
		"group":      []string{"/" + path.Join(s.directory, currentDirectory)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(searchPath, query), nil)
	if err != nil {
		return err
	}

	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("can't search current components: unexpected status %q", resp.Status)
	}

	result := &searchResult{}
	err = json.NewDecoder(resp.Body).Decode(result)
	if err != nil {
		return fmt.Errorf("can't decode search response: %w", err)
	}

	for _, item := range result.Items {
		if len(item.ID) == 0 {
			continue
		}

		err = s.deleteComponent(ctx, item.ID)
		if err != nil {
			return err
		}
		klog.V(4).Infof("Removed current component %q.", item.Name)
	}

	return nil
}

func (s *NexusStore) deleteComponent(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.baseURL+componentsPath+"/"+id, nil)
	if err != nil {
		return err
	}

	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("can't delete component %q: unexpected status %q", id, resp.Status)
	}

	return nil
}
