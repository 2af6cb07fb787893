package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/ghodss/yaml"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/workqueue"
	"k8s.io/klog/v2"

	"github.com/unidata-tools/udunits-publish-tools/pkg/api"
	"github.com/unidata-tools/udunits-publish-tools/pkg/helpers"
	"github.com/unidata-tools/udunits-publish-tools/pkg/merge"
	"github.com/unidata-tools/udunits-publish-tools/pkg/publish"
	"github.com/unidata-tools/udunits-publish-tools/pkg/upstream"
)

const (
	ControllerName = "udunits-publisher"

	// StatusFileName is the file written into the data dir after every
	// successful publish. The artifact server serves it on /api/status.
	StatusFileName = "status.yaml"
)

var (
	queueKey = "release"
)

type PublishController struct {
	source      upstream.Source
	merger      *merge.Merger
	store       publish.Store
	manifest    *api.Manifest
	dataDir     string
	resyncEvery time.Duration

	now func() time.Time

	queue workqueue.RateLimitingInterface
}

func NewPublishController(
	source upstream.Source,
	store publish.Store,
	manifest *api.Manifest,
	dataDir string,
	resyncEvery time.Duration,
) *PublishController {
	return &PublishController{
		source:      source,
		merger:      merge.NewMerger(manifest),
		store:       store,
		manifest:    manifest,
		dataDir:     dataDir,
		resyncEvery: resyncEvery,

		now: time.Now,

		queue: workqueue.NewRateLimitingQueue(workqueue.DefaultControllerRateLimiter()),
	}
}

func (pc *PublishController) sync(ctx context.Context, key string) error {
	klog.V(4).Infof("Started syncing key %q", key)
	defer func() {
		klog.V(4).Infof("Finished syncing key %q", key)
	}()

	release, err := pc.source.Latest(ctx)
	if err != nil {
		return fmt.Errorf("can't determine latest upstream release: %w", err)
	}
	klog.Infof("Latest upstream release is %q.", release.Tag)

	current, err := pc.store.CurrentVersion(ctx)
	switch {
	case errors.Is(err, publish.ErrNotPublished):
		klog.Info("No current version published yet - forcing publish.")

	case err != nil:
		return fmt.Errorf("can't determine published version: %w", err)

	case current == release.Version:
		klog.Infof("Published version %q is up to date.", current)
		return nil

	default:
		klog.Infof("Published version is %q, updating to %q.", current, release.Version)
	}

	artifacts, err := pc.buildArtifacts(ctx, release)
	if err != nil {
		return err
	}

	err = pc.store.Publish(ctx, release.Version, artifacts)
	if err != nil {
		return err
	}
	klog.Infof("Published release %q.", release.Tag)

	return pc.writeStatus(release, artifacts)
}

// buildArtifacts checks out the release and produces the combined document
// and the verbatim copyright file.
func (pc *PublishController) buildArtifacts(ctx context.Context, release *api.Release) ([]api.Artifact, error) {
	fs, err := pc.source.Checkout(ctx, release)
	if err != nil {
		return nil, err
	}

	registryData, err := helpers.ReadFile(fs, path.Join(pc.manifest.LibSubpath, pc.manifest.RegistryFile))
	if err != nil {
		return nil, err
	}

	files, err := merge.ParseRegistry(registryData)
	if err != nil {
		return nil, err
	}

	var fragments []merge.Fragment
	for _, file := range files {
		data, err := helpers.ReadFile(fs, path.Join(pc.manifest.LibSubpath, file))
		if err != nil {
			return nil, err
		}

		fragment, err := pc.merger.NewFragment(release, file, data)
		if err != nil {
			return nil, err
		}

		fragments = append(fragments, fragment)
	}

	combined, err := pc.merger.Combine(release, pc.now().Year(), fragments)
	if err != nil {
		return nil, err
	}

	copyright, err := helpers.ReadFile(fs, pc.manifest.CopyrightFile)
	if err != nil {
		return nil, err
	}

	return []api.Artifact{
		{Name: pc.manifest.CombinedFileName, Data: combined},
		{Name: pc.manifest.CopyrightFileName, Data: copyright},
	}, nil
}

func (pc *PublishController) writeStatus(release *api.Release, artifacts []api.Artifact) error {
	if len(pc.dataDir) == 0 {
		return nil
	}

	status := &api.Status{
		Tag:         release.Tag,
		Version:     release.Version,
		Hash:        release.Hash,
		PublishedAt: pc.now().UTC(),
	}
	for _, artifact := range artifacts {
		status.Artifacts = append(status.Artifacts, artifact.Name)
	}

	data, err := yaml.Marshal(status)
	if err != nil {
		return fmt.Errorf("can't marshal status: %w", err)
	}

	statusPath := filepath.Join(pc.dataDir, StatusFileName)
	err = os.WriteFile(statusPath, data, 0644)
	if err != nil {
		return fmt.Errorf("can't write status file %q: %w", statusPath, err)
	}

	return nil
}

// RunOnce performs a single sync, for cron style triggering.
func (pc *PublishController) RunOnce(ctx context.Context) error {
	return pc.sync(ctx, queueKey)
}

func (pc *PublishController) processNextItem(ctx context.Context) bool {
	key, quit := pc.queue.Get()
	if quit {
		return false
	}
	defer pc.queue.Done(key)

	err := pc.sync(ctx, key.(string))
	if err == nil {
		pc.queue.Forget(key)
		return true
	}

	utilruntime.HandleError(fmt.Errorf("%v failed with : %v", key, err))
	pc.queue.AddRateLimited(key)

	return true
}

func (pc *PublishController) runWorker(ctx context.Context) {
	for pc.processNextItem(ctx) {
	}
}

func (pc *PublishController) Run(ctx context.Context) {
	defer utilruntime.HandleCrash()

	var wg sync.WaitGroup
	klog.Info("Starting publish controller")
	defer func() {
		klog.Info("Shutting down publish controller")
		pc.queue.ShutDown()
		wg.Wait()
		klog.Info("Publish controller shut down")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		wait.UntilWithContext(ctx, func(ctx context.Context) {
			pc.queue.Add(queueKey)
		}, pc.resyncEvery)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		wait.UntilWithContext(ctx, pc.runWorker, time.Second)
	}()

	<-ctx.Done()
}
