package handlers

import (
	"net/http"
	"runtime"
	"sort"
	"sync"

	"github.com/fulmenhq/gofulmen/crucible"
)

// AppName is reported as the service name.
const AppName = "clauselens"

// BuildInfo is the build metadata injected through linker flags.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

// ProviderInfo describes the model backend the server dispatches to.
type ProviderInfo struct {
	Name  string   `json:"name"`
	Model string   `json:"model"`
	Pools []string `json:"pools"`
}

var (
	versionMu sync.RWMutex
	build     = BuildInfo{Version: "dev", Commit: "unknown", BuildDate: "unknown"}
	provider  *ProviderInfo
)

// SetVersionInfo records the build metadata.
func SetVersionInfo(version, commit, buildDate string) {
	versionMu.Lock()
	defer versionMu.Unlock()
	build = BuildInfo{Version: version, Commit: commit, BuildDate: buildDate}
}

// SetProviderInfo records the provider served by this process. Pool names are
// reported sorted.
func SetProviderInfo(name, model string, pools []string) {
	sorted := append([]string(nil), pools...)
	sort.Strings(sorted)

	versionMu.Lock()
	defer versionMu.Unlock()
	provider = &ProviderInfo{Name: name, Model: model, Pools: sorted}
}

// VersionResponse is the body of GET /version.
type VersionResponse struct {
	Name     string        `json:"name"`
	Build    BuildInfo     `json:"build"`
	Provider *ProviderInfo `json:"provider,omitempty"`
	Gofulmen string        `json:"gofulmen"`
	Crucible string        `json:"crucible"`
	Go       string        `json:"go"`
	Platform string        `json:"platform"`
}

// CurrentVersion snapshots the build, provider and runtime details.
func CurrentVersion() VersionResponse {
	deps := crucible.GetVersion()

	versionMu.RLock()
	defer versionMu.RUnlock()
	resp := VersionResponse{
		Name:     AppName,
		Build:    build,
		Gofulmen: deps.Gofulmen,
		Crucible: deps.Crucible,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
	if provider != nil {
		p := *provider
		resp.Provider = &p
	}
	return resp
}

// VersionHandler serves CurrentVersion as JSON.
func VersionHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CurrentVersion())
}
