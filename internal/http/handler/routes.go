package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"notary/docs"
	"notary/internal/fanout"
	"notary/internal/service"
)

// Deps are the collaborators served over HTTP.
type Deps struct {
	// DB may be nil when the service runs on in-memory backends.
	DB       Pinger
	Notary   service.NotaryService
	Feed     *fanout.Broadcaster
	TopicID  func() string
	Gatherer prometheus.Gatherer
	// MaxUploadBytes caps uploaded documents. Zero disables the check.
	MaxUploadBytes int64
	// Done ends open event streams on shutdown.
	Done <-chan struct{}
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Feed == nil {
		d.Feed = fanout.New()
	}
	if d.TopicID == nil {
		d.TopicID = func() string { return "" }
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))

	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())

	app.Get("/config", GetConfig(d.Notary))

	api := app.Group("/api")
	api.Get("/check/:hash", CheckExists(d.Notary))
	api.Post("/notarize", Notarize(d.Notary, d.MaxUploadBytes))
	api.Post("/verify", Verify(d.Notary, d.MaxUploadBytes))

	app.Get("/events", Events(d.Feed, d.TopicID, d.Done))
}

// BodyLimit is the fiber request limit that admits a document of maxMB
// megabytes plus its multipart framing.
func BodyLimit(maxMB int) int {
	const overhead = 1 << 20
	if maxMB <= 0 {
		return fiber.DefaultBodyLimit
	}
	return maxMB<<20 + overhead
}
