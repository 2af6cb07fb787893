package publish

import (
	"bytes"
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"k8s.io/klog/v2"

	"github.com/unidata-tools/udunits-publish-tools/pkg/api"
)

// AFSStore publishes artifacts to a URL addressed location (file://,
// mem://, s3://, ...). Combined with the artifact server binary serving the
// same directory this makes the artifact server self-hostable.
type AFSStore struct {
	fs               afs.Service
	baseURL          string
	combinedFileName string
}

func NewAFSStore(baseURL, combinedFileName string) *AFSStore {
	return &AFSStore{
		fs:               afs.New(),
		baseURL:          baseURL,
		combinedFileName: combinedFileName,
	}
}

func (s *AFSStore) CurrentVersion(ctx context.Context) (string, error) {
	URL := url.Join(s.baseURL, currentDirectory, s.combinedFileName)

	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return "", fmt.Errorf("can't check %q: %w", URL, err)
	}
	if !exists {
		klog.V(2).Infof("Current combined document %q does not exist yet.", URL)
		return "", ErrNotPublished
	}

	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return "", fmt.Errorf("can't download %q: %w", URL, err)
	}

	return documentVersion(data)
}

func (s *AFSStore) Publish(ctx context.Context, version string, artifacts []api.Artifact) error {
	err := s.upload(ctx, version, artifacts)
	if err != nil {
		return fmt.Errorf("can't publish versioned artifacts: %w", err)
	}

	err = s.upload(ctx, currentDirectory, artifacts)
	if err != nil {
		return fmt.Errorf("can't publish current artifacts: %w", err)
	}

	return nil
}

func (s *AFSStore) upload(ctx context.Context, directory string, artifacts []api.Artifact) error {
	for _, artifact := range artifacts {
		URL := url.Join(s.baseURL, directory, artifact.Name)
		klog.V(4).Infof("Uploading %q.", URL)

		err := s.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(artifact.Data))
		if err != nil {
			return fmt.Errorf("can't upload %q: %w", URL, err)
		}
	}

	return nil
}
