package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
	"github.com/couchcryptid/bmkg-relay/internal/region"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const defaultNearbyRadiusKM = 500

type nearbyQuery struct {
	Lat      float64 `validate:"latitude"`
	Lon      float64 `validate:"longitude"`
	RadiusKM float64 `validate:"gt=0"`
}

type searchQuery struct {
	Q     string `validate:"required"`
	Limit int    `validate:"gt=0"`
}

func (s *Server) handleLatestEarthquake(w http.ResponseWriter, r *http.Request) {
	e, err := s.deps.Resources.LatestEarthquake(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeItems(w, e)
}

func (s *Server) handleRecentEarthquakes(w http.ResponseWriter, r *http.Request) {
	events, err := s.deps.Resources.RecentEarthquakes(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeItems(w, events)
}

func (s *Server) handleFeltEarthquakes(w http.ResponseWriter, r *http.Request) {
	events, err := s.deps.Resources.FeltEarthquakes(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeItems(w, events)
}

func (s *Server) handleNearbyEarthquakes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		params nearbyQuery
		err    error
	)
	if params.Lat, err = requiredFloat(q.Get("lat"), "lat"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if params.Lon, err = requiredFloat(q.Get("lon"), "lon"); err != nil {
		s.writeError(w, r, err)
		return
	}
	params.RadiusKM = defaultNearbyRadiusKM
	if raw := q.Get("radius_km"); raw != "" {
		if params.RadiusKM, err = requiredFloat(raw, "radius_km"); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if err := s.check(params); err != nil {
		s.writeError(w, r, err)
		return
	}

	got, err := s.deps.Resources.NearbyEarthquakes(r.Context(), params.Lat, params.Lon, params.RadiusKM)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeItems(w, got)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	f, err := s.deps.Resources.Forecast(r.Context(), chi.URLParam(r, "adm4"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeItems(w, f)
}

func (s *Server) handleCurrentWeather(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Resources.CurrentWeather(r.Context(), chi.URLParam(r, "adm4"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeItems(w, c)
}

func (s *Server) handleActiveAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.deps.Resources.ActiveAlerts(r.Context(), r.URL.Query().Get("lang"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeItems(w, alerts)
}

func (s *Server) handleProvinceNowcast(w http.ResponseWriter, r *http.Request) {
	pn, err := s.deps.Resources.ProvinceNowcast(r.Context(), chi.URLParam(r, "province"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, pn, len(pn.Warnings))
}

func (s *Server) handleCheckLocation(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Resources.CheckLocation(r.Context(), r.URL.Query().Get("location"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, res, len(res.Warnings))
}

func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	v, err := s.deps.Resources.Resolve(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeItems(w, v)
}

type regionView struct {
	domain.RegionRecord
	FullPath string `json:"full_path"`
}

func (s *Server) handleProvinces(w http.ResponseWriter, _ *http.Request) {
	writeItems(w, s.deps.Regions.Provinces())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := searchQuery{Q: q.Get("q"), Limit: region.DefaultSearchLimit}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, domain.InvalidArgumentf("limit %q is not an integer", raw))
			return
		}
		params.Limit = n
	}
	if err := s.check(params); err != nil {
		s.writeError(w, r, err)
		return
	}

	recs, err := s.deps.Regions.Search(params.Q, params.Limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeItems(w, recs)
}

func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	rec, err := s.deps.Regions.Lookup(code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	path, err := s.deps.Regions.FullPath(code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeItems(w, regionView{RegionRecord: rec, FullPath: path})
}

func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	rec, err := s.deps.Regions.Lookup(code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	children := []domain.RegionRecord{}
	if rec.Level < domain.LevelVillage {
		if children, err = s.deps.Regions.Children(code, rec.Level+1); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	writeItems(w, children)
}

func requiredFloat(raw, name string) (float64, error) {
	if raw == "" {
		return 0, domain.InvalidArgumentf("%s query parameter is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, domain.InvalidArgumentf("%s must be a number, got %q", name, raw)
	}
	return v, nil
}

// check runs struct validation and rewrites failures as InvalidArgument with
// a readable message.
func (s *Server) check(v any) error {
	err := s.validate.Struct(v)
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("%s fails %s", queryName(fe.Field()), fieldRule(fe)))
	}
	return domain.InvalidArgumentf("%s", strings.Join(msgs, "; "))
}

func queryName(field string) string {
	switch field {
	case "RadiusKM":
		return "radius_km"
	default:
		return strings.ToLower(field)
	}
}

func fieldRule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
