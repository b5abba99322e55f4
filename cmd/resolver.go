package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/biomap-cli/internal/fetcher"
	"github.com/sells-group/biomap-cli/internal/resilience"
	"github.com/sells-group/biomap-cli/internal/resolve"
	"github.com/sells-group/biomap-cli/internal/store"
	"github.com/sells-group/biomap-cli/pkg/uniprot"
)

// buildResolver creates the historical-resolution backend named by
// resolver.kind. A nil resolver means the historical stage is skipped.
func buildResolver(ctx context.Context, loader *fetcher.Loader, st store.Store) (resolve.Resolver, error) {
	rc := cfg.Resolver
	switch rc.Kind {
	case "", "none":
		return nil, nil

	case "static":
		ds, err := loader.Load(ctx, rc.MappingFile, fetcher.LoadOptions{Name: "resolver_mapping", IDField: rc.FromField})
		if err != nil {
			return nil, eris.Wrap(err, "load resolver mapping")
		}
		r, err := resolve.NewStaticResolverFromDataset(ds, rc.FromField, rc.ToField, rc.ScoreField, rc.Score)
		if err != nil {
			return nil, err
		}
		zap.L().Info("static resolver loaded", zap.String("file", rc.MappingFile), zap.Int("mappings", r.Len()))
		return r, nil

	case "uniprot":
		uc := cfg.UniProt
		client := uniprot.NewClient(
			uniprot.WithBaseURL(uc.BaseURL),
			uniprot.WithHTTPClient(&http.Client{Timeout: time.Duration(uc.TimeoutSecs) * time.Second}),
			uniprot.WithRateLimit(uc.RateLimit),
			uniprot.WithRetry(uc.Retry.Resilience()),
			uniprot.WithCircuitBreaker(resilience.NewCircuitBreaker(uc.Circuit.Resilience())),
		)
		if rc.Cache && st != nil {
			return store.NewCachedResolver(client, st, "uniprot", rc.CacheTTL()), nil
		}
		return client, nil

	default:
		return nil, eris.Errorf("unknown resolver kind %q", rc.Kind)
	}
}
