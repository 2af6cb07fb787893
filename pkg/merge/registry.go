package merge

import (
	"encoding/xml"
	"fmt"
	"strings"
)

type registryDocument struct {
	Imports []string `xml:"import"`
}

// ParseRegistry extracts the ordered fragment file list from a release's
// registry document. The <import> order defines the order of children in
// the combined document.
func ParseRegistry(data []byte) ([]string, error) {
	registry := &registryDocument{}
	err := xml.Unmarshal(data, registry)
	if err != nil {
		return nil, fmt.Errorf("can't parse registry: %w", err)
	}

	var files []string
	for _, imp := range registry.Imports {
		name := strings.TrimSpace(imp)
		if len(name) == 0 {
			continue
		}
		files = append(files, name)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("registry contains no <import> elements")
	}

	return files, nil
}
