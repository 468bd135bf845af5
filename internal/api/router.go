package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Ranking/internal/admin"
	"github.com/MikeSquared-Agency/Ranking/internal/extractor"
)

type RouterOptions struct {
	AdminToken         string
	RateLimitPerMinute int
	CORSOrigins        []string
}

func NewRouter(svc *admin.Service, ex extractor.Client, opts RouterOptions, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(opts.RateLimitPerMinute))

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	catalog := NewCatalogHandler(svc, logger)
	wts := NewWeightsHandler(svc, logger)
	scores := NewScoresHandler(svc, logger)
	rankings := NewRankingsHandler(svc, logger)
	imports := NewImportsHandler(svc, ex, logger)
	documents := NewDocumentsHandler(svc, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/rankings/years", rankings.Years)
		r.Get("/rankings/{year}", rankings.Get)
		r.Get("/rankings/{year}/standings", rankings.Standings)
		r.Get("/countries", catalog.ListCountries)
		r.Get("/countries/{id}", catalog.GetCountry)
		r.Get("/documents", documents.List)
		r.Get("/documents/year/{year}", documents.ByYear)
		r.Get("/documents/{id}", documents.Get)
		r.Get("/documents/{id}/file", documents.Download)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(opts.AdminToken))

			r.Post("/countries", catalog.CreateCountry)
			r.Put("/countries/{id}", catalog.UpdateCountry)
			r.Delete("/countries/{id}", catalog.DeleteCountry)

			r.Get("/dimensions", catalog.ListDimensions)
			r.Post("/dimensions", catalog.CreateDimension)
			r.Post("/dimensions/bulk-delete", catalog.BulkDeleteDimensions)
			r.Get("/dimensions/year/{year}", catalog.DimensionsByYear)
			r.Get("/dimensions/{id}", catalog.GetDimension)
			r.Put("/dimensions/{id}", catalog.UpdateDimension)
			r.Delete("/dimensions/{id}", catalog.DeleteDimension)
			r.Put("/dimensions/{id}/weights/{year}", catalog.SetDimensionWeight)

			r.Get("/indicators", catalog.ListIndicators)
			r.Post("/indicators", catalog.CreateIndicator)
			r.Get("/indicators/years", catalog.IndicatorYears)
			r.Post("/indicators/bulk-delete", catalog.BulkDeleteIndicators)
			r.Get("/indicators/{id}", catalog.GetIndicator)
			r.Put("/indicators/{id}", catalog.UpdateIndicator)
			r.Delete("/indicators/{id}", catalog.DeleteIndicator)
			r.Put("/indicators/{id}/weights/{year}", catalog.SetIndicatorWeight)

			r.Get("/weights/dimensions/{dimensionID}/{year}/total", wts.Total)
			r.Post("/weights/dimensions/{dimensionID}/{year}/normalize", wts.Normalize)
			r.Post("/weights/dimensions/{dimensionID}/{year}/equalize", wts.Equalize)
			r.Get("/weights/years/{year}/total", wts.Total)
			r.Post("/weights/years/{year}/normalize", wts.Normalize)
			r.Post("/weights/years/{year}/equalize", wts.Equalize)
			r.Get("/weights/years/{year}/validate", wts.Validate)
			r.Post("/weights/normalize", wts.NormalizeAll)

			r.Get("/scores", scores.List)
			r.Post("/scores", scores.Create)
			r.Put("/scores", scores.Save)
			r.Post("/scores/import", scores.Import)
			r.Put("/scores/{id}", scores.Update)
			r.Delete("/scores/{id}", scores.Delete)

			r.Post("/rankings/{year}/generate", rankings.Generate)
			r.Delete("/rankings/{year}", rankings.Delete)
			r.Get("/rankings/{year}/dimension-scores", rankings.DimensionScores)

			r.Post("/imports/detect", imports.Detect)
			r.Post("/imports/process", imports.Process)

			r.Post("/documents", documents.Upload)
			r.Put("/documents/{id}", documents.UpdateTitle)
			r.Put("/documents/{id}/file", documents.ReplaceFile)
			r.Delete("/documents/{id}", documents.Delete)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
