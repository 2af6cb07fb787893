package merge

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// element is a generic XML element tree. Fragments are decoded into it,
// prefixed, and re-serialized without interpreting their structure.
type element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []element  `xml:",any"`
}

// applyPrefix rewrites the tag of the element and all its descendants to
// prefix:tag.
func (el *element) applyPrefix(prefix string) {
	el.XMLName.Local = prefix + ":" + el.XMLName.Local
	el.XMLName.Space = ""
	for i := range el.Children {
		el.Children[i].applyPrefix(prefix)
	}
}

// childrenNamed returns the direct children with the given tag.
func (el *element) childrenNamed(name string) []element {
	var out []element
	for _, child := range el.Children {
		if child.XMLName.Local == name {
			out = append(out, child)
		}
	}
	return out
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// write serializes the element with two-space indentation. The output is
// deterministic: attribute order and child order follow the tree order.
func (el *element) write(buf *bytes.Buffer, depth int) {
	indent := strings.Repeat("  ", depth)

	buf.WriteString(indent)
	buf.WriteByte('<')
	buf.WriteString(el.XMLName.Local)
	for _, attr := range el.Attrs {
		buf.WriteByte(' ')
		buf.WriteString(attrName(attr.Name))
		buf.WriteString(`="`)
		buf.WriteString(escape(attr.Value))
		buf.WriteByte('"')
	}

	text := strings.TrimSpace(el.Text)
	if len(el.Children) == 0 && len(text) == 0 {
		buf.WriteString("/>\n")
		return
	}

	buf.WriteByte('>')
	if len(el.Children) == 0 {
		buf.WriteString(escape(text))
		buf.WriteString("</")
		buf.WriteString(el.XMLName.Local)
		buf.WriteString(">\n")
		return
	}

	buf.WriteByte('\n')
	if len(text) != 0 {
		buf.WriteString(strings.Repeat("  ", depth+1))
		buf.WriteString(escape(text))
		buf.WriteByte('\n')
	}
	for i := range el.Children {
		el.Children[i].write(buf, depth+1)
	}
	buf.WriteString(indent)
	buf.WriteString("</")
	buf.WriteString(el.XMLName.Local)
	buf.WriteString(">\n")
}

func attrName(name xml.Name) string {
	if len(name.Space) != 0 {
		return name.Space + ":" + name.Local
	}
	return name.Local
}
