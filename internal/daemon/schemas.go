package daemon

import (
	"encoding/json"
	"net/http"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/agent"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/quiz"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/tools"
)

// SchemaHandler serves the tool schemas available to each profile as JSON.
type SchemaHandler struct{}

// ServeHTTP renders schemas keyed by profile name.
func (SchemaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	out := make(map[quiz.Profile][]tools.Schema, len(quiz.Profiles))
	for _, p := range quiz.Profiles {
		out[p] = tools.Schemas(agent.Toolset(p)...)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
