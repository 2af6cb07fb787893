package api

import (
	"time"
)

// Release is one tagged upstream release. Immutable once discovered.
type Release struct {
	Tag     string
	Version string
	Hash    string
}

// Artifact is a named blob destined for the artifact server.
type Artifact struct {
	Name string
	Data []byte
}

// Manifest describes how a release's unit-definition fragments are located
// and combined. The zero value is not usable; start from DefaultManifest.
type Manifest struct {
	// LibSubpath is the repository subdirectory holding the registry and
	// the fragment files.
	LibSubpath string `json:"libSubpath"`
	// RegistryFile is the registry document whose <import> elements define
	// the fragment order.
	RegistryFile string `json:"registryFile"`
	// CopyrightFile is the license file copied verbatim, relative to the
	// repository root.
	CopyrightFile string `json:"copyrightFile"`

	// Prefixes maps fragment file names to the namespace prefix their
	// elements are rewritten with.
	Prefixes map[string]string `json:"prefixes"`

	RootElement  string `json:"rootElement"`
	SchemaPrefix string `json:"schemaPrefix"`
	SchemaURI    string `json:"schemaURI"`
	// SourceURLBase is a printf template taking the release tag; fragment
	// file names are appended to form the per-prefix namespace URLs.
	SourceURLBase string `json:"sourceURLBase"`
	// CopyrightNoticeURL is a printf template taking the release version,
	// referenced from the copyright comment of the combined document.
	CopyrightNoticeURL string `json:"copyrightNoticeURL"`

	CombinedFileName  string `json:"combinedFileName"`
	CopyrightFileName string `json:"copyrightFileName"`
}

// Status records the last successful publish for the status API.
type Status struct {
	Tag         string    `json:"tag"`
	Version     string    `json:"version"`
	Hash        string    `json:"hash"`
	PublishedAt time.Time `json:"publishedAt"`
	Artifacts   []string  `json:"artifacts"`
}

// DefaultManifest matches the upstream UDUNITS-2 repository layout.
func DefaultManifest() *Manifest {
	return &Manifest{
		LibSubpath:    "lib",
		RegistryFile:  "udunits2.xml",
		CopyrightFile: "COPYRIGHT",

		Prefixes: map[string]string{
			"udunits2-prefixes.xml": "p",
			"udunits2-base.xml":     "b",
			"udunits2-derived.xml":  "d",
			"udunits2-accepted.xml": "a",
			"udunits2-common.xml":   "c",
		},

		RootElement:        "udunits-2",
		SchemaPrefix:       "u2",
		SchemaURI:          "https://doi.org/10.5065/D6KD1WN0",
		SourceURLBase:      "https://raw.githubusercontent.com/Unidata/UDUNITS-2/%s/lib/",
		CopyrightNoticeURL: "https://docs.unidata.ucar.edu/thredds/udunits2/%s/UDUNITS-2_COPYRIGHT",

		CombinedFileName:  "udunits2_combined.xml",
		CopyrightFileName: "UDUNITS-2_COPYRIGHT",
	}
}
