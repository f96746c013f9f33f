package handlers

import "net/http"

// Build metadata, set once at startup by the main package.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetBuildInfo records the binary's build metadata for the version endpoint.
func SetBuildInfo(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
}

type versionResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

func (a *API) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(a.log, w, http.StatusOK, versionResponse{
		Version:   buildVersion,
		Commit:    buildCommit,
		BuildDate: buildDate,
	})
}
