package apihandlers

import (
	"net/http"
	"os"

	"github.com/ghodss/yaml"
	"github.com/unidata-tools/udunits-publish-tools/pkg/api"
)

// StatusHandler serves the publish status file written by the publisher
// after each successful run. The file is read on every request so the
// handler always reflects the latest publish.
func StatusHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawData, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			http.Error(w, "no release published yet", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		// Always unmarshal to make sure the file is valid
		status := &api.Status{}
		err = yaml.Unmarshal(rawData, status)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		WriteObject(w, r, status)
	}
}
