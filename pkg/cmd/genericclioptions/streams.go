package genericclioptions

import (
	"io"
)

// IOStreams carries the standard streams so commands never touch
// os.Stdin/os.Stdout directly and tests can substitute buffers.
type IOStreams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}
