package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/pilgrim-map/internal/catalog"
)

const contentTypeGeoJSON = "application/geo+json"

// Response messages. The map front end displays them as-is.
const (
	msgServerError    = "Erreur serveur"
	msgNotFound       = "Feature non trouvée"
	msgCreateFailed   = "Erreur lors de la création"
	msgUpdateFailed   = "Erreur lors de la modification"
	msgDeleteFailed   = "Erreur lors de la suppression"
	msgInvalidID      = "Identifiant invalide"
	msgInvalidBody    = "Corps de requête invalide"
	msgInvalidGeom    = "Géométrie invalide"
	msgInvalidProps   = "Propriétés invalides"
	msgBadCredentials = "Identifiants incorrects"
	msgUnauthorized   = "Non authentifié"
	msgTooManyLogins  = "Trop de tentatives, réessayez plus tard"
)

type errorBody struct {
	Error string `json:"error"`
}

type successBody struct {
	Success bool   `json:"success"`
	ID      *int64 `json:"id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	writeTyped(w, "application/json", status, v)
}

func writeTyped(w http.ResponseWriter, contentType string, status int, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeCatalogError maps a catalog error kind to a status code. Server-side
// failures are logged and answered with fallback.
func (s *Server) writeCatalogError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, catalog.ErrInvalidGeometry):
		writeError(w, http.StatusBadRequest, msgInvalidGeom)
	case errors.Is(err, catalog.ErrInvalidProperties):
		writeError(w, http.StatusBadRequest, msgInvalidProps)
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	default:
		s.log.Error("catalog request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
