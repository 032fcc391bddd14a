package cli

import (
	"fmt"
	nethttp "net/http"
	"sync"

	"github.com/internxt/drivectl/internal/api"
	"github.com/internxt/drivectl/internal/config"
	"github.com/internxt/drivectl/internal/http"
	"github.com/internxt/drivectl/internal/ratelimit"
)

var (
	limiterOnce sync.Once
	limiter     *ratelimit.Service
)

// rateLimiter returns the process-wide rate limit service. Every client
// built by a command shares it, so quota learned by one is seen by all.
func rateLimiter() *ratelimit.Service {
	limiterOnce.Do(func() {
		limiter = ratelimit.NewService(ratelimit.NewStore(),
			ratelimit.WithLogger(GetLogger().Child("ratelimit")))
	})
	return limiter
}

// loadConfig returns the validated configuration, prompting for a proxy
// password when one is needed and stdin is interactive.
func loadConfig() (*config.Config, error) {
	cfg := loadedCfg
	if cfg == nil {
		var err error
		cfg, err = config.Load(configPath())
		if err != nil {
			return nil, err
		}
		cfg.MergeWithFlags(flagOverrides())
	}

	if cfg.NeedsProxyPassword() {
		password, err := promptSecret(fmt.Sprintf("Proxy password for %s@%s: ", cfg.ProxyUser, cfg.ProxyHost))
		if err != nil {
			return nil, fmt.Errorf("proxy password required: %w", err)
		}
		cfg.ProxyPassword = password
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// getAPIClient loads configuration and creates the SDK client.
func getAPIClient() (*api.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	client, err := api.NewClient(GetContext(), cfg, rateLimiter(), GetLogger().Child("api"))
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return client, nil
}

// getHTTPClient loads configuration and creates the generic rate-limited client.
func getHTTPClient() (*nethttp.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	client, err := http.NewClient(GetContext(), cfg, rateLimiter(), GetLogger().Child("http"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return client, cfg, nil
}
