package serving

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/unidata-tools/udunits-publish-tools/pkg/serving/apihandlers"
)

func RegisterHandlers(m *mux.Router, artifactDirPath string, statusPath string) {
	m.PathPrefix("/udunits2/").Handler(http.StripPrefix("/udunits2/", http.FileServer(http.Dir(artifactDirPath))))

	m.PathPrefix("/api/status").HandlerFunc(apihandlers.StatusHandler(statusPath))
}
