package util

import (
	"flag"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var hiddenKlogFlags = []string{
	"add_dir_header",
	"alsologtostderr",
	"log_backtrace_at",
	"log_dir",
	"log_file",
	"log_file_max_size",
	"logtostderr",
	"one_output",
	"skip_headers",
	"skip_log_headers",
	"stderrthreshold",
	"vmodule",
}

// InstallKlog hides the noisy klog flags from command help, leaving only
// the verbosity flag visible.
func InstallKlog(cmd *cobra.Command) {
	for _, name := range hiddenKlogFlags {
		f := cmd.PersistentFlags().Lookup(name)
		if f == nil {
			continue
		}
		f.Hidden = true
	}

	cmd.PersistentFlags().SetNormalizeFunc(func(fs *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(name)
	})
}

// GetLoglevel reports the effective klog verbosity as a string.
func GetLoglevel() string {
	f := flag.CommandLine.Lookup("v")
	if f == nil {
		return "0"
	}

	return f.Value.String()
}
