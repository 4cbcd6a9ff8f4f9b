package feed

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
	"github.com/couchcryptid/bmkg-relay/internal/fetch"
	"github.com/couchcryptid/bmkg-relay/internal/parser"
	"golang.org/x/sync/errgroup"
)

// maxAlertFetches bounds concurrent CAP document requests per resolution.
const maxAlertFetches = 8

var provinceCodeRe = regexp.MustCompile(`^[A-Z]{2,4}$`)

// Nowcast feed languages. An empty language selects LangID.
const (
	LangID = "id"
	LangEN = "en"
)

// ActiveAlerts returns the active nowcast list in lang. Province and location
// resolution always read the Indonesian list.
func (s *Service) ActiveAlerts(ctx context.Context, lang string) ([]domain.ActiveAlert, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = LangID
	}
	if lang != LangID && lang != LangEN {
		return nil, domain.InvalidArgumentf("nowcast language %q must be %q or %q", lang, LangID, LangEN)
	}
	return fetch.Resolve(ctx, s.orch, ActiveAlertsKey(lang), fetch.CategoryNowcast,
		func(ctx context.Context) ([]byte, error) { return s.upstream.ActiveAlerts(ctx, lang) },
		parser.ParseActiveAlerts)
}

// ProvinceNowcast returns every active warning for a province code such as
// "CBT", ordered by start of validity. Alerts whose CAP document has already
// been withdrawn are skipped.
func (s *Service) ProvinceNowcast(ctx context.Context, province string) (domain.ProvinceNowcast, error) {
	code := strings.ToUpper(strings.TrimSpace(province))
	if !provinceCodeRe.MatchString(code) {
		return domain.ProvinceNowcast{}, domain.InvalidArgumentf("province code %q must be 2-4 letters", province)
	}

	return fetch.ResolveDerived(ctx, s.orch, NowcastProvinceKey(code), fetch.CategoryNowcast,
		func(ctx context.Context) (domain.ProvinceNowcast, error) {
			active, err := s.ActiveAlerts(ctx, LangID)
			if err != nil {
				return domain.ProvinceNowcast{}, err
			}
			var codes []string
			for _, a := range active {
				if a.ProvinceCode == code {
					codes = append(codes, a.AlertCode)
				}
			}
			if len(codes) == 0 {
				return domain.ProvinceNowcast{}, domain.NotFoundf("no active nowcast for province %s", code)
			}

			fetched := make([]*domain.NowcastWarning, len(codes))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(maxAlertFetches)
			for i, alertCode := range codes {
				g.Go(func() error {
					w, err := s.warning(gctx, alertCode)
					if errors.Is(err, domain.ErrNotFound) {
						s.logger.WarnContext(gctx, "nowcast alert listed but not published",
							"province", code, "alert_code", alertCode, "error", err)
						return nil
					}
					if err != nil {
						return err
					}
					fetched[i] = &w
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return domain.ProvinceNowcast{}, err
			}

			warnings := make([]domain.NowcastWarning, 0, len(codes))
			for _, w := range fetched {
				if w != nil {
					warnings = append(warnings, *w)
				}
			}
			if len(warnings) == 0 {
				return domain.ProvinceNowcast{}, domain.NotFoundf("no published nowcast for province %s", code)
			}

			slices.SortStableFunc(warnings, func(a, b domain.NowcastWarning) int {
				if c := a.ValidFrom.Compare(b.ValidFrom); c != 0 {
					return c
				}
				return strings.Compare(a.AlertCode, b.AlertCode)
			})
			return domain.ProvinceNowcast{ProvinceCode: code, Warnings: warnings}, nil
		})
}

// warning fetches the Indonesian CAP document and, best effort, the English
// one. The English description is kept only when both documents describe the
// same alert.
func (s *Service) warning(ctx context.Context, alertCode string) (domain.NowcastWarning, error) {
	var (
		id, en domain.NowcastWarning
		enErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := s.upstream.Alert(gctx, "id", alertCode)
		if err != nil {
			return err
		}
		id, err = parser.ParseCAP(raw)
		return err
	})
	g.Go(func() error {
		raw, err := s.upstream.Alert(gctx, "en", alertCode)
		if err != nil {
			enErr = err
			return nil
		}
		en, enErr = parser.ParseCAP(raw)
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.NowcastWarning{}, err
	}

	if enErr == nil && id.SameIdentity(en) {
		if d := en.Description["en"]; d != "" {
			id.Description["en"] = d
		}
	}
	return id, nil
}

// CheckLocation reports the active warnings whose text mentions location.
// Provinces without any published warning are skipped; any other failure
// fails the check.
func (s *Service) CheckLocation(ctx context.Context, location string) (domain.LocationCheck, error) {
	loc := strings.ToLower(strings.TrimSpace(location))
	if utf8.RuneCountInString(loc) < 2 {
		return domain.LocationCheck{}, domain.InvalidArgumentf("location must be at least 2 characters")
	}

	return fetch.ResolveDerived(ctx, s.orch, NowcastCheckKey(loc), fetch.CategoryNowcast,
		func(ctx context.Context) (domain.LocationCheck, error) {
			active, err := s.ActiveAlerts(ctx, LangID)
			if err != nil {
				return domain.LocationCheck{}, err
			}
			var provinces []string
			for _, a := range active {
				if !slices.Contains(provinces, a.ProvinceCode) {
					provinces = append(provinces, a.ProvinceCode)
				}
			}
			slices.Sort(provinces)

			perProvince := make([][]domain.NowcastWarning, len(provinces))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(maxAlertFetches)
			for i, p := range provinces {
				g.Go(func() error {
					pn, err := s.ProvinceNowcast(gctx, p)
					if errors.Is(err, domain.ErrNotFound) {
						return nil
					}
					if err != nil {
						return err
					}
					perProvince[i] = pn.Warnings
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return domain.LocationCheck{}, err
			}

			res := domain.LocationCheck{Location: loc, Warnings: []domain.NowcastWarning{}}
			for _, ws := range perProvince {
				for _, w := range ws {
					if mentions(w, loc) {
						res.Warnings = append(res.Warnings, w)
					}
				}
			}
			res.HasWarning = len(res.Warnings) > 0
			return res, nil
		})
}

func mentions(w domain.NowcastWarning, loc string) bool {
	if strings.Contains(strings.ToLower(w.Headline), loc) {
		return true
	}
	for _, d := range w.Description {
		if strings.Contains(strings.ToLower(d), loc) {
			return true
		}
	}
	for _, a := range w.AreaNames {
		if strings.Contains(strings.ToLower(a), loc) {
			return true
		}
	}
	return false
}
