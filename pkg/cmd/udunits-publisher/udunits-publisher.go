package udunits_publisher

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ghodss/yaml"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"

	"github.com/unidata-tools/udunits-publish-tools/pkg/api"
	"github.com/unidata-tools/udunits-publish-tools/pkg/cmd/genericclioptions"
	cmdutil "github.com/unidata-tools/udunits-publish-tools/pkg/cmd/util"
	"github.com/unidata-tools/udunits-publish-tools/pkg/controller/publisher"
	"github.com/unidata-tools/udunits-publish-tools/pkg/gittools"
	"github.com/unidata-tools/udunits-publish-tools/pkg/publish"
	"github.com/unidata-tools/udunits-publish-tools/pkg/signals"
	"github.com/unidata-tools/udunits-publish-tools/pkg/upstream"
)

const (
	usernameEnv = "NEXUS_USERNAME"
	passwordEnv = "NEXUS_PASSWORD"
)

type Options struct {
	genericclioptions.IOStreams

	GitURL       string
	ManifestPath string
	PublishURL   string
	Repository   string
	Directory    string
	DataDir      string
	ResyncEvery  time.Duration
	Once         bool

	manifest *api.Manifest
	store    publish.Store
	source   upstream.Source
}

func NewOptions(streams genericclioptions.IOStreams) *Options {
	return &Options{
		IOStreams: streams,

		GitURL:       "https://github.com/Unidata/UDUNITS-2",
		ManifestPath: "",
		PublishURL:   "https://artifacts.unidata.ucar.edu/",
		Repository:   "udunits-2-docs",
		Directory:    "udunits2",
		DataDir:      "",
		ResyncEvery:  24 * time.Hour,
		Once:         false,
	}
}

func NewPublisherCommand(streams genericclioptions.IOStreams) *cobra.Command {
	o := NewOptions(streams)

	// Parent command to which all subcommands are added.
	rootCmd := &cobra.Command{
		Use:   "udunits-publisher",
		Short: "udunits-publisher is a controller for combining UDUNITS-2 unit definitions and publishing them to an artifact server",
		Long:  "udunits-publisher is a controller for combining UDUNITS-2 unit definitions and publishing them to an artifact server",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer klog.Flush()

			err := o.Validate()
			if err != nil {
				return err
			}

			err = o.Complete()
			if err != nil {
				return err
			}

			err = o.Run(cmd, streams)
			if err != nil {
				return err
			}

			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	rootCmd.PersistentFlags().StringVarP(&o.GitURL, "git-url", "", o.GitURL, "Repository URL containing the unit definitions.")
	rootCmd.PersistentFlags().StringVarP(&o.ManifestPath, "manifest", "", o.ManifestPath, "Path to a YAML file overriding the merge manifest. Defaults match upstream UDUNITS-2.")
	rootCmd.PersistentFlags().StringVarP(&o.PublishURL, "publish-url", "", o.PublishURL, "Artifact server base URL. http(s) URLs publish through the Nexus components API, other schemes (file://, mem://, ...) write directly.")
	rootCmd.PersistentFlags().StringVarP(&o.Repository, "repository", "", o.Repository, "Nexus raw repository name to publish into.")
	rootCmd.PersistentFlags().StringVarP(&o.Directory, "directory", "", o.Directory, "Directory inside the repository holding the versioned artifact tree.")
	rootCmd.PersistentFlags().StringVarP(&o.DataDir, "data-dir", "", o.DataDir, "Directory used to cache upstream clones and store the publish status. Empty means in-memory clones and no status file.")
	rootCmd.PersistentFlags().DurationVarP(&o.ResyncEvery, "resync-every", "", o.ResyncEvery, "Interval to recheck the upstream repository for new releases.")
	rootCmd.PersistentFlags().BoolVarP(&o.Once, "once", "", o.Once, "Run a single check-and-publish cycle and exit, for cron style triggering.")

	cmdutil.InstallKlog(rootCmd)

	return rootCmd
}

func (o *Options) Validate() error {
	var errs []error

	if len(o.GitURL) == 0 {
		errs = append(errs, fmt.Errorf("git url can't be empty"))
	}

	if len(o.PublishURL) == 0 {
		errs = append(errs, fmt.Errorf("publish url can't be empty"))
	}

	if !o.Once && o.ResyncEvery <= 0 {
		errs = append(errs, fmt.Errorf("resync interval must be positive"))
	}

	return errors.NewAggregate(errs)
}

func (o *Options) Complete() error {
	var err error

	o.manifest, err = loadManifest(o.ManifestPath)
	if err != nil {
		return err
	}

	if len(o.DataDir) != 0 {
		err = os.MkdirAll(o.DataDir, 0755)
		if err != nil {
			return fmt.Errorf("can't create data dir %q: %w", o.DataDir, err)
		}
	}

	var cache *gittools.RepoCache
	if len(o.DataDir) != 0 {
		cache = gittools.NewRepoCache(filepath.Join(o.DataDir, "repos"))
	}
	o.source = upstream.NewReleaseSource(o.GitURL, cache)

	publishURL, err := url.Parse(o.PublishURL)
	if err != nil {
		return fmt.Errorf("can't parse publish url %q: %w", o.PublishURL, err)
	}

	switch publishURL.Scheme {
	case "http", "https":
		credentials := publish.Credentials{
			Username: os.Getenv(usernameEnv),
			Password: os.Getenv(passwordEnv),
		}
		if len(credentials.Username) == 0 || len(credentials.Password) == 0 {
			klog.Warningf("%s or %s not set - publishing anonymously.", usernameEnv, passwordEnv)
		} else {
			klog.V(2).Info("Found credentials.")
		}

		o.store = publish.NewNexusStore(o.PublishURL, o.Repository, o.Directory, o.manifest.CombinedFileName, credentials)

	default:
		o.store = publish.NewAFSStore(o.PublishURL, o.manifest.CombinedFileName)
	}

	return nil
}

func (o *Options) Run(cmd *cobra.Command, streams genericclioptions.IOStreams) error {
	stopCh := signals.StopChannel()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-stopCh
		cancel()
	}()

	klog.Infof("loglevel is set to %q", cmdutil.GetLoglevel())

	pc := publisher.NewPublishController(
		o.source,
		o.store,
		o.manifest,
		o.DataDir,
		o.ResyncEvery,
	)

	if o.Once {
		return pc.RunOnce(ctx)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		pc.Run(ctx)
	}()

	<-ctx.Done()

	wg.Wait()

	return nil
}

func loadManifest(path string) (*api.Manifest, error) {
	manifest := api.DefaultManifest()
	if len(path) == 0 {
		return manifest, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read manifest %q: %w", path, err)
	}

	err = yaml.Unmarshal(data, manifest)
	if err != nil {
		return nil, fmt.Errorf("can't parse manifest %q: %w", path, err)
	}

	return manifest, nil
}
