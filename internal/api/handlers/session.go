package handlers

import (
	"context"
	"errors"
	"isochrone-explorer/internal/api/dto"
	"isochrone-explorer/internal/domain"
	"isochrone-explorer/internal/services"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb/geojson"
)

// SessionService is the part of services.Session the handlers drive.
type SessionService interface {
	State() domain.State
	MoveOrigin(ctx context.Context, c domain.LatLon) (domain.State, error)
	MoveDestination(ctx context.Context, c domain.LatLon) (domain.State, error)
}

var validate = validator.New()

type pointBody struct {
	Lat *float64 `validate:"required,latitude"`
	Lon *float64 `validate:"required,longitude"`
}

// SessionHandler exposes the map session: its state, the two marker drags
// and the overlays derived from them.
type SessionHandler struct {
	Session SessionService
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewSessionResponse(h.Session.State()))
}

func (h *SessionHandler) Origin(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, "origin", h.Session.MoveOrigin)
}

func (h *SessionHandler) Destination(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, "destination", h.Session.MoveDestination)
}

func (h *SessionHandler) move(
	w http.ResponseWriter,
	r *http.Request,
	marker string,
	fn func(context.Context, domain.LatLon) (domain.State, error),
) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req dto.PointRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(pointBody{Lat: req.Lat, Lon: req.Lon}); err != nil {
		writeError(w, r, http.StatusBadRequest, "lat and lon must be valid coordinates")
		return
	}

	st, err := fn(r.Context(), domain.LatLon{Lat: *req.Lat, Lon: *req.Lon})
	if err != nil {
		status := moveStatus(err)
		if status == http.StatusBadGateway {
			log.Printf("move %s failed: lat=%f lon=%f err=%v", marker, *req.Lat, *req.Lon, err)
		}
		writeError(w, r, status, err.Error())
		return
	}

	writeJSON(w, r, http.StatusOK, dto.NewSessionResponse(st))
}

func moveStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrNotLoaded), errors.Is(err, services.ErrNoSurface):
		return http.StatusConflict
	case errors.Is(err, domain.ErrOutsideGrid):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// Isochrone returns the current isochrone as a FeatureCollection, empty when
// none has been computed.
func (h *SessionHandler) Isochrone(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	fc := geojson.NewFeatureCollection()
	if iso := h.Session.State().Isochrone; iso != nil {
		fc.Append(iso)
	}
	writeJSON(w, r, http.StatusOK, fc)
}

// Transitive returns the transit diagram of the current route.
func (h *SessionHandler) Transitive(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	var raw []byte
	if route := h.Session.State().Route; route != nil {
		raw = route.Transitive
	}

	fc, err := services.TransitiveToGeoJSON(raw)
	if err != nil {
		log.Printf("transit diagram failed: %v", err)
		writeError(w, r, http.StatusBadGateway, "invalid transit route data")
		return
	}
	writeJSON(w, r, http.StatusOK, fc)
}
