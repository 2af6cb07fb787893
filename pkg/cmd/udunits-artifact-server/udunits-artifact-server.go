package udunits_artifact_server

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"

	"github.com/unidata-tools/udunits-publish-tools/pkg/cmd/genericclioptions"
	cmdutil "github.com/unidata-tools/udunits-publish-tools/pkg/cmd/util"
	"github.com/unidata-tools/udunits-publish-tools/pkg/controller/publisher"
	"github.com/unidata-tools/udunits-publish-tools/pkg/serving"
	"github.com/unidata-tools/udunits-publish-tools/pkg/signals"
)

type Options struct {
	genericclioptions.IOStreams

	ListenAddr      string
	ArtifactDirPath string
	DataDir         string
}

func NewOptions(streams genericclioptions.IOStreams) *Options {
	return &Options{
		IOStreams: streams,

		ListenAddr:      ":5000",
		ArtifactDirPath: "",
		DataDir:         "",
	}
}

func NewArtifactServerCommand(streams genericclioptions.IOStreams) *cobra.Command {
	o := NewOptions(streams)

	// Parent command to which all subcommands are added.
	rootCmd := &cobra.Command{
		Use:   "udunits-artifact-server",
		Short: "udunits-artifact-server serves a published UDUNITS-2 artifact tree and its publish status",
		Long:  "udunits-artifact-server serves a published UDUNITS-2 artifact tree and its publish status",
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

	rootCmd.PersistentFlags().StringVarP(&o.ListenAddr, "listen", "", o.ListenAddr, "Address to listen on.")
	rootCmd.PersistentFlags().StringVarP(&o.ArtifactDirPath, "artifact-dir", "", o.ArtifactDirPath, "Path to the directory holding the published artifact tree.")
	rootCmd.PersistentFlags().StringVarP(&o.DataDir, "data-dir", "", o.DataDir, "Publisher data directory holding the publish status file.")

	cmdutil.InstallKlog(rootCmd)

	return rootCmd
}

func (o *Options) Validate() error {
	var errs []error

	if len(o.ArtifactDirPath) == 0 {
		errs = append(errs, fmt.Errorf("artifact dir path can't be empty"))
	}

	if len(o.DataDir) == 0 {
		errs = append(errs, fmt.Errorf("data dir path can't be empty"))
	}

	return errors.NewAggregate(errs)
}

func (o *Options) Complete() error {
	return nil
}

func (o *Options) Run(cmd *cobra.Command, streams genericclioptions.IOStreams) error {
	klog.Infof("loglevel is set to %q", cmdutil.GetLoglevel())

	stopCh := signals.StopChannel()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-stopCh
		cancel()
	}()

	statusPath := filepath.Join(o.DataDir, publisher.StatusFileName)

	return serving.RunServer(ctx, o.ListenAddr, o.ArtifactDirPath, statusPath)
}
