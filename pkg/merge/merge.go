package merge

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"k8s.io/klog/v2"

	"github.com/unidata-tools/udunits-publish-tools/pkg/api"
)

// versionAttr carries the release version on the combined document's root
// element so later runs can tell which release is published without
// picking it out of a namespace URL.
const versionAttr = "version"

// MalformedInputError reports a fragment that failed to parse. Nothing is
// published when any fragment is malformed.
type MalformedInputError struct {
	File string
	Err  error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input %q: %v", e.File, e.Err)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// Fragment is one unit-definition file of a release, annotated with the
// namespace prefix its elements are rewritten with.
type Fragment struct {
	File      string
	Prefix    string
	SourceURL string
	Data      []byte
}

type Merger struct {
	manifest *api.Manifest
}

func NewMerger(manifest *api.Manifest) *Merger {
	return &Merger{
		manifest: manifest,
	}
}

// NewFragment binds a registry file name to its configured prefix and
// per-release source URL.
func (m *Merger) NewFragment(release *api.Release, file string, data []byte) (Fragment, error) {
	prefix, ok := m.manifest.Prefixes[file]
	if !ok {
		return Fragment{}, fmt.Errorf("no namespace prefix configured for %q", file)
	}

	return Fragment{
		File:      file,
		Prefix:    prefix,
		SourceURL: fmt.Sprintf(m.manifest.SourceURLBase, release.Tag) + file,
		Data:      data,
	}, nil
}

// Combine merges the fragments into a single well-formed document: a root
// element carrying the release version and the namespace declarations, a
// copyright comment, and one unit-system element holding every collected
// entry in fragment order.
func (m *Merger) Combine(release *api.Release, year int, fragments []Fragment) ([]byte, error) {
	unitSystem := element{
		XMLName: xml.Name{Local: m.manifest.SchemaPrefix + ":unit-system"},
	}

	total := 0
	for _, fragment := range fragments {
		entries, err := collectEntries(fragment)
		if err != nil {
			return nil, err
		}

		klog.V(4).Infof("Processed %d entries from %q.", len(entries), fragment.File)
		unitSystem.Children = append(unitSystem.Children, entries...)
		total += len(entries)
	}
	klog.V(4).Infof("Combined %d total entries.", total)

	root := element{
		XMLName: xml.Name{Local: m.manifest.RootElement},
		Attrs: []xml.Attr{
			{Name: xml.Name{Local: versionAttr}, Value: release.Version},
			{Name: xml.Name{Space: "xmlns", Local: m.manifest.SchemaPrefix}, Value: m.manifest.SchemaURI},
		},
	}
	for _, fragment := range fragments {
		root.Attrs = append(root.Attrs, xml.Attr{
			Name:  xml.Name{Space: "xmlns", Local: fragment.Prefix},
			Value: fragment.SourceURL,
		})
	}
	root.Children = []element{unitSystem}

	return serialize(&root, m.notice(release.Version, year)), nil
}

func (m *Merger) notice(version string, year int) string {
	copyrightURL := fmt.Sprintf(m.manifest.CopyrightNoticeURL, version)
	return fmt.Sprintf(
		"Copyright %d University Corporation for Atmospheric Research\n\n"+
			"This file is derived from the UDUNITS-2 package.  See the UDUNITS-2_COPYRIGHT\n"+
			"%s for copying and\n"+
			"redistribution conditions.\n",
		year, copyrightURL,
	)
}

// collectEntries decodes a fragment, picks its top level <unit> elements
// (or <prefix> elements for the prefix table), and rewrites their tags with
// the fragment's namespace prefix.
func collectEntries(fragment Fragment) ([]element, error) {
	root := &element{}
	err := xml.Unmarshal(fragment.Data, root)
	if err != nil {
		return nil, &MalformedInputError{File: fragment.File, Err: err}
	}

	entries := root.childrenNamed("unit")
	if len(entries) == 0 {
		entries = root.childrenNamed("prefix")
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no <prefix> or <unit> elements found in %q", fragment.File)
	}

	for i := range entries {
		entries[i].applyPrefix(fragment.Prefix)
	}

	return entries, nil
}

func serialize(root *element, comment string) []byte {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	buf.WriteByte('<')
	buf.WriteString(root.XMLName.Local)
	for _, attr := range root.Attrs {
		buf.WriteByte(' ')
		buf.WriteString(attrName(attr.Name))
		buf.WriteString(`="`)
		buf.WriteString(escape(attr.Value))
		buf.WriteByte('"')
	}
	buf.WriteString(">\n")

	buf.WriteString("<!--")
	buf.WriteString(comment)
	buf.WriteString("-->\n")

	for i := range root.Children {
		root.Children[i].write(&buf, 1)
	}

	buf.WriteString("</")
	buf.WriteString(root.XMLName.Local)
	buf.WriteString(">\n")

	return buf.Bytes()
}

// DocumentVersion reads the release version recorded on the root element
// of a combined document.
func DocumentVersion(data []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("can't parse combined document: %w", err)
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		for _, attr := range start.Attr {
			if attr.Name.Local == versionAttr && len(attr.Name.Space) == 0 {
				return attr.Value, nil
			}
		}

		return "", fmt.Errorf("combined document carries no %q attribute", versionAttr)
	}

	return "", fmt.Errorf("combined document has no root element")
}
