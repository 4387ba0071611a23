package http

import (
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/hagall-spatial/featureflag"
	"github.com/aukilabs/hagall-spatial/models"
	"github.com/aukilabs/hagall-spatial/quadtree"
	"github.com/segmentio/encoding/json"
)

const maxBodySize = 1 << 20

// SpaceHandler serves the JSON API that manages spaces and their entities.
type SpaceHandler struct {
	// The store that contains all the server spaces.
	Spaces *models.SpaceStore

	// The default quadtree node capacity of new spaces.
	NodeCapacity int

	FeatureFlags featureflag.FeatureFlag
}

// Register registers the space routes on the given mux.
func (h *SpaceHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /spaces", h.HandleCreateSpace)
	mux.HandleFunc("GET /spaces", h.HandleListSpaces)
	mux.HandleFunc("GET /spaces/{id}", h.HandleGetSpace)
	mux.HandleFunc("DELETE /spaces/{id}", h.HandleDeleteSpace)
	mux.HandleFunc("POST /spaces/{id}/clear", h.HandleClearSpace)
	mux.HandleFunc("GET /spaces/{id}/stats", h.HandleSpaceStats)
	mux.HandleFunc("GET /spaces/{id}/tree", h.HandleSpaceTree)
	mux.HandleFunc("GET /spaces/{id}/query", h.HandleQuery)
	mux.HandleFunc("GET /spaces/{id}/entities", h.HandleListEntities)
	mux.HandleFunc("POST /spaces/{id}/entities", h.HandleAddEntity)
	mux.HandleFunc("PUT /spaces/{id}/entities/{eid}", h.HandleMoveEntity)
	mux.HandleFunc("DELETE /spaces/{id}/entities/{eid}", h.HandleRemoveEntity)
}

type rectJSON struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

func newRectJSON(r quadtree.Rect) rectJSON {
	return rectJSON{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

func (r rectJSON) rect() quadtree.Rect {
	return quadtree.NewRect(r.X, r.Y, r.Width, r.Height)
}

type createSpaceRequest struct {
	Name         string   `json:"name"`
	Bounds       rectJSON `json:"bounds"`
	NodeCapacity int      `json:"node_capacity,omitempty"`
}

type spaceResponse struct {
	ID     uint32            `json:"id"`
	UUID   string            `json:"uuid"`
	Name   string            `json:"name,omitempty"`
	Bounds rectJSON          `json:"bounds"`
	Stats  models.SpaceStats `json:"stats"`
}

func newSpaceResponse(s *models.Space) spaceResponse {
	return spaceResponse{
		ID:     s.ID,
		UUID:   s.UUID,
		Name:   s.Name,
		Bounds: newRectJSON(s.Bounds),
		Stats:  s.Stats(),
	}
}

type entityRequest struct {
	Label  string   `json:"label,omitempty"`
	Bounds rectJSON `json:"bounds"`
}

type entityResponse struct {
	ID     uint32   `json:"id"`
	Label  string   `json:"label,omitempty"`
	Bounds rectJSON `json:"bounds"`
}

func newEntityResponse(e *models.Entity) entityResponse {
	return entityResponse{
		ID:     e.ID,
		Label:  e.Label,
		Bounds: newRectJSON(e.Hitbox()),
	}
}

func newEntityResponses(entities []*models.Entity) []entityResponse {
	res := make([]entityResponse, len(entities))
	for i, e := range entities {
		res[i] = newEntityResponse(e)
	}
	return res
}

type queryResponse struct {
	Mode     string           `json:"mode"`
	Found    bool             `json:"found"`
	Count    int              `json:"count"`
	Entities []entityResponse `json:"entities,omitempty"`
}

type errorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (h *SpaceHandler) HandleCreateSpace(w http.ResponseWriter, r *http.Request) {
	var req createSpaceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	bounds := req.Bounds.rect()
	if err := validateRect(bounds); err != nil {
		writeError(w, err)
		return
	}

	nodeCapacity := req.NodeCapacity
	if nodeCapacity <= 0 {
		nodeCapacity = h.NodeCapacity
	}

	space := models.NewSpace(h.Spaces.NewID(), models.SpaceOptions{
		Name:            req.Name,
		Bounds:          bounds,
		NodeCapacity:    nodeCapacity,
		Strict:          h.FeatureFlags.IsSet(featureflag.FlagStrictBounds),
		VerifiedRemoval: h.FeatureFlags.IsSet(featureflag.FlagVerifiedRemoval),
	})
	if err := h.Spaces.Add(r.Context(), space); err != nil {
		writeError(w, err)
		return
	}

	logs.WithTag("space_id", space.ID).
		WithTag("space_uuid", space.UUID).
		WithTag("bounds", bounds.String()).
		Info("space created")
	writeJSON(w, http.StatusCreated, newSpaceResponse(space))
}

func (h *SpaceHandler) HandleListSpaces(w http.ResponseWriter, r *http.Request) {
	spaces := h.Spaces.List()

	res := make([]spaceResponse, len(spaces))
	for i, s := range spaces {
		res[i] = newSpaceResponse(s)
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SpaceHandler) HandleGetSpace(w http.ResponseWriter, r *http.Request) {
	space, err := h.space(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSpaceResponse(space))
}

func (h *SpaceHandler) HandleDeleteSpace(w http.ResponseWriter, r *http.Request) {
	space, err := h.space(r)
	if err != nil {
		writeError(w, err)
		return
	}

	h.Spaces.Remove(r.Context(), space)
	logs.WithTag("space_id", space.ID).
		WithTag("space_uuid", space.UUID).
		Info("space deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *SpaceHandler) HandleClearSpace(w http.ResponseWriter, r *http.Request) {
	space, err := h.space(r)
	if err != nil {
		writeError(w, err)
		return
	}

	space.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (h *SpaceHandler) HandleSpaceStats(w http.ResponseWriter, r *http.Request) {
	space, err := h.space(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, space.Stats())
}

// HandleSpaceTree writes the quadtree of the space as indented text.
func (h *SpaceHandler) HandleSpaceTree(w http.ResponseWriter, r *http.Request) {
	space, err := h.space(r)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, space.Tree().String())
}

// HandleQuery looks up the entities overlapping the rectangle given by the x,
// y, w and h query parameters. The mode parameter selects an exact lookup
// (default), a conservative one that may return entities outside of the
// rectangle, or an existence check.
func (h *SpaceHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	space, err := h.space(r)
	if err != nil {
		writeError(w, err)
		return
	}

	area, err := parseQueryRect(r)
	if err != nil {
		writeError(w, err)
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = models.QueryModeExact
	}

	res := queryResponse{Mode: mode}

	switch mode {
	case models.QueryModeExact:
		res.Entities = newEntityResponses(space.Intersect(area))

	case models.QueryModeConservative:
		res.Entities = newEntityResponses(space.Candidates(area))

	case models.QueryModeAny:
		if space.Any(area) {
			res.Count = 1
		}

	default:
		writeError(w, errors.New("unknown query mode").
			WithType(ErrTypeInvalidQuery).
			WithTag("mode", mode))
		return
	}

	if res.Entities != nil {
		res.Count = len(res.Entities)
	}
	res.Found = res.Count != 0
	writeJSON(w, http.StatusOK, res)
}

func (h *SpaceHandler) HandleListEntities(w http.ResponseWriter, r *http.Request) {
	space, err := h.space(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newEntityResponses(space.Entities()))
}

func (h *SpaceHandler) HandleAddEntity(w http.ResponseWriter, r *http.Request) {
	space, err := h.space(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req entityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	bounds := req.Bounds.rect()
	if err := validateRect(bounds); err != nil {
		writeError(w, err)
		return
	}

	entity := models.NewEntity(space.NewEntityID(), req.Label, bounds)
	if err := space.AddEntity(entity); err != nil {
		space.ReuseEntityID(entity.ID)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newEntityResponse(entity))
}

func (h *SpaceHandler) HandleMoveEntity(w http.ResponseWriter, r *http.Request) {
	space, err := h.space(r)
	if err != nil {
		writeError(w, err)
		return
	}

	entityID, err := parseID(r, "eid")
	if err != nil {
		writeError(w, err)
		return
	}

	var req entityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	bounds := req.Bounds.rect()
	if err := validateRect(bounds); err != nil {
		writeError(w, err)
		return
	}

	if err := space.MoveEntity(entityID, bounds); err != nil {
		writeError(w, err)
		return
	}

	entity, ok := space.EntityByID(entityID)
	if !ok {
		writeError(w, entityNotFound(space.ID, entityID))
		return
	}
	writeJSON(w, http.StatusOK, newEntityResponse(entity))
}

func (h *SpaceHandler) HandleRemoveEntity(w http.ResponseWriter, r *http.Request) {
	space, err := h.space(r)
	if err != nil {
		writeError(w, err)
		return
	}

	entityID, err := parseID(r, "eid")
	if err != nil {
		writeError(w, err)
		return
	}

	if _, ok := space.RemoveEntity(entityID); !ok {
		writeError(w, entityNotFound(space.ID, entityID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SpaceHandler) space(r *http.Request) (*models.Space, error) {
	id, err := parseID(r, "id")
	if err != nil {
		return nil, err
	}

	space, ok := h.Spaces.Get(id)
	if !ok {
		return nil, errors.New("space not found").
			WithType(models.ErrTypeSpaceNotFound).
			WithTag("space_id", id)
	}
	return space, nil
}

func entityNotFound(spaceID, entityID uint32) error {
	return errors.New("entity not found").
		WithType(models.ErrTypeEntityNotFound).
		WithTag("space_id", spaceID).
		WithTag("entity_id", entityID)
}

func parseID(r *http.Request, name string) (uint32, error) {
	v := r.PathValue(name)

	id, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, errors.New("invalid id").
			WithType(ErrTypeBadRequest).
			WithTag(name, v).
			Wrap(err)
	}
	return uint32(id), nil
}

func parseQueryRect(r *http.Request) (quadtree.Rect, error) {
	query := r.URL.Query()

	var values [4]float32
	for i, name := range [...]string{"x", "y", "w", "h"} {
		v := query.Get(name)

		f, err := strconv.ParseFloat(v, 32)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return quadtree.Rect{}, errors.New("invalid query rectangle").
				WithType(ErrTypeInvalidQuery).
				WithTag(name, v)
		}
		values[i] = float32(f)
	}

	area := quadtree.NewRect(values[0], values[1], values[2], values[3])
	if area.Width < 0 || area.Height < 0 {
		return quadtree.Rect{}, errors.New("query rectangle has a negative size").
			WithType(ErrTypeInvalidQuery).
			WithTag("rect", area.String())
	}
	return area, nil
}

func validateRect(r quadtree.Rect) error {
	for _, v := range [...]float32{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return errors.New("rectangle is not finite").
				WithType(ErrTypeInvalidRect).
				WithTag("rect", r.String())
		}
	}

	if r.Empty() {
		return errors.New("rectangle has no area").
			WithType(ErrTypeInvalidRect).
			WithTag("rect", r.String())
	}
	return nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, errors.New("reading body failed").Wrap(err))
		return false
	}

	if err := json.Unmarshal(b, v); err != nil {
		writeError(w, errors.New("invalid request body").
			WithType(ErrTypeBadRequest).
			Wrap(err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logs.Warn(errors.New("writing response failed").Wrap(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError

	switch errors.Type(err) {
	case models.ErrTypeSpaceNotFound, models.ErrTypeEntityNotFound:
		statusCode = http.StatusNotFound

	case models.ErrTypeEntityExists:
		statusCode = http.StatusConflict

	case models.ErrTypeOutOfBounds:
		statusCode = http.StatusUnprocessableEntity

	case ErrTypeBadRequest, ErrTypeInvalidRect, ErrTypeInvalidQuery:
		statusCode = http.StatusBadRequest

	default:
		logs.Error(err)
	}

	writeJSON(w, statusCode, errorResponse{
		Type:    errors.Type(err),
		Message: err.Error(),
	})
}
