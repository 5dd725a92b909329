package api

import (
	"context"
	"net/http"
	"time"

	"github.com/alexliesenfeld/health"
)

// newHealthHandler reports down while a configured version provider cannot list defaults.
func newHealthHandler(s *Server) http.Handler {
	checker := health.NewChecker(
		health.WithCacheDuration(time.Second),
		health.WithTimeout(5*time.Second),
		health.WithCheck(health.Check{
			Name: "version-provider",
			Check: func(ctx context.Context) error {
				p := s.versionProvider()
				if p == nil {
					return nil
				}
				_, err := p.DefaultVersionIDs(ctx)
				return err
			},
		}),
	)
	return health.NewHandler(checker)
}
