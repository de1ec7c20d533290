package schema

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"

	"github.com/autobrr/propfilter/pkg/httputils"
	"github.com/autobrr/propfilter/pkg/logger"
)

// HTTPConfig configures the remote schema API client.
type HTTPConfig struct {
	URL       string
	Token     string
	Timeout   time.Duration
	RateLimit int
}

// HTTPClient resolves property definitions and cohorts from the project API.
type HTTPClient struct {
	cfg  HTTPConfig
	http *http.Client
	log  *logrus.Entry
}

type propertyDefinitionsResponse struct {
	Results []struct {
		Name         string `json:"name"`
		PropertyType string `json:"property_type"`
	} `json:"results"`
}

type cohortResponse struct {
	ID      int64 `json:"id"`
	Deleted bool  `json:"deleted"`
}

func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	var rl ratelimit.Limiter
	if cfg.RateLimit > 0 {
		rl = ratelimit.New(cfg.RateLimit, ratelimit.WithoutSlack)
	} else {
		rl = ratelimit.NewUnlimited()
	}

	return &HTTPClient{
		cfg:  cfg,
		http: httputils.NewRetryableHttpClient(cfg.Timeout, rl),
		log:  logger.GetLogger("schema-api"),
	}
}

func (c *HTTPClient) headers() map[string]string {
	h := map[string]string{
		"Accept": "application/json",
	}
	if c.cfg.Token != "" {
		h["Authorization"] = "Bearer " + c.cfg.Token
	}
	return h
}

func (c *HTTPClient) projectURL(teamID int64, parts ...string) string {
	return fmt.Sprintf("%s/api/projects/%d/%s", strings.TrimSuffix(c.cfg.URL, "/"), teamID, strings.Join(parts, "/"))
}

func (c *HTTPClient) Lookup(ctx context.Context, teamID int64, key string, kind DefinitionType) (PropertyType, bool, error) {
	requestURL, err := httputils.URLWithQuery(c.projectURL(teamID, "property_definitions"), url.Values{
		"name": []string{key},
		"type": []string{string(kind)},
	})
	if err != nil {
		return "", false, fmt.Errorf("property definitions url: %w", err)
	}

	var resp propertyDefinitionsResponse
	if err := httputils.MakeAPIRequest(ctx, c.http, http.MethodGet, requestURL, nil, c.headers(), &resp); err != nil {
		if httputils.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("lookup property %q: %w", key, err)
	}

	for _, def := range resp.Results {
		if def.Name != key {
			continue
		}
		c.log.Tracef("Property %q (%s) has type %q", key, kind, def.PropertyType)
		if def.PropertyType == "" {
			return "", false, nil
		}
		return PropertyType(def.PropertyType), true, nil
	}

	return "", false, nil
}

func (c *HTTPClient) Resolve(ctx context.Context, teamID int64, cohortID int64) (CohortKey, error) {
	requestURL := c.projectURL(teamID, "cohorts", fmt.Sprint(cohortID))

	var resp cohortResponse
	if err := httputils.MakeAPIRequest(ctx, c.http, http.MethodGet, requestURL, nil, c.headers(), &resp); err != nil {
		if httputils.IsNotFound(err) {
			return 0, fmt.Errorf("%w: cohort %d for team %d", ErrNotFound, cohortID, teamID)
		}
		return 0, fmt.Errorf("resolve cohort %d: %w", cohortID, err)
	}

	if resp.Deleted {
		return 0, fmt.Errorf("%w: cohort %d for team %d is deleted", ErrNotFound, cohortID, teamID)
	}

	c.log.Tracef("Resolved cohort %d for team %d", cohortID, teamID)
	return CohortKey(resp.ID), nil
}
