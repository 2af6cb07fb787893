package apihandlers

import (
	"encoding/json"
	"net/http"

	"github.com/ghodss/yaml"
	"k8s.io/klog/v2"
)

// WriteObject serializes the object as JSON or YAML according to the
// request's Accept header, defaulting to YAML.
func WriteObject(w http.ResponseWriter, r *http.Request, o interface{}) {
	switch r.Header.Get("Accept") {
	case "application/json":
		data, err := json.MarshalIndent(o, "", "  ")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, err = w.Write(data)
		if err != nil {
			klog.Error(err)
		}

	default:
		fallthrough
	case "application/yaml":
		data, err := yaml.Marshal(o)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, err = w.Write(data)
		if err != nil {
			klog.Error(err)
		}
	}
}
