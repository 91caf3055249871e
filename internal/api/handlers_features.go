package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/pilgrim-map/internal/catalog"
)

// featureRequest is the body of create and update calls. A "type" member is
// accepted and ignored.
type featureRequest struct {
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

func (s *Server) handleListFeatures(w http.ResponseWriter, r *http.Request) {
	fc, err := s.catalog.List(r.Context())
	if err != nil {
		s.writeCatalogError(w, r, err, msgServerError)
		return
	}
	writeTyped(w, contentTypeGeoJSON, http.StatusOK, fc)
}

func (s *Server) handleGetFeature(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	f, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		s.writeCatalogError(w, r, err, msgServerError)
		return
	}
	writeTyped(w, contentTypeGeoJSON, http.StatusOK, f)
}

func (s *Server) handleCreateFeature(w http.ResponseWriter, r *http.Request) {
	f, ok := decodeFeature(w, r)
	if !ok {
		return
	}
	id, err := s.catalog.Create(r.Context(), f)
	if err != nil {
		s.writeCatalogError(w, r, err, msgCreateFailed)
		return
	}
	s.logWrite(r, "created", id)
	writeJSON(w, http.StatusCreated, successBody{Success: true, ID: &id})
}

func (s *Server) handleUpdateFeature(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	f, ok := decodeFeature(w, r)
	if !ok {
		return
	}
	if err := s.catalog.Update(r.Context(), id, f); err != nil {
		s.writeCatalogError(w, r, err, msgUpdateFailed)
		return
	}
	s.logWrite(r, "updated", id)
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

func (s *Server) handleDeleteFeature(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := s.catalog.Delete(r.Context(), id); err != nil {
		s.writeCatalogError(w, r, err, msgDeleteFailed)
		return
	}
	s.logWrite(r, "deleted", id)
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

// logWrite records who changed a site. Writes without a session only happen
// when sessions are not required for writes.
func (s *Server) logWrite(r *http.Request, action string, id int64) {
	editor := "anonymous"
	if sess, ok := SessionFromContext(r.Context()); ok {
		editor = sess.Username
	}
	s.log.Info("site "+action, zap.Int64("id", id), zap.String("editor", editor))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.catalog.Stats(r.Context())
	if err != nil {
		s.writeCatalogError(w, r, err, msgServerError)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// parseID reads the {id} URL parameter. It answers 400 itself when the
// parameter is not a positive integer.
func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, msgInvalidID)
		return 0, false
	}
	return id, true
}

func decodeFeature(w http.ResponseWriter, r *http.Request) (catalog.Feature, bool) {
	var req featureRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return catalog.Feature{}, false
	}
	return catalog.Feature{
		Type:       "Feature",
		Geometry:   req.Geometry,
		Properties: req.Properties,
	}, true
}
