package applovin

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/adnreport/internal/domain"
	"github.com/timmy/adnreport/internal/logger"
	"github.com/timmy/adnreport/internal/source"
)

const (
	SourceID        = "applovin"
	DefaultEndpoint = "https://r.applovin.com/report"
	DefaultTimeout  = 5 * time.Minute
)

// reportColumns is the fixed column list requested from the report API.
var reportColumns = []string{
	"day", "hour", "impressions", "clicks", "ctr", "revenue", "ecpm",
	"country", "ad_type", "size", "device_type", "platform", "application",
	"package_name", "placement", "application_is_hidden", "zone", "zone_id",
}

// Config holds the outbound HTTP settings of the adapter.
type Config struct {
	Endpoint  string
	Timeout   time.Duration
	HTTPProxy string // optional, e.g. http://10.0.0.1:3128
}

// Adapter implements source.ReportSource for the AppLovin reporting API.
type Adapter struct {
	client   *resty.Client
	endpoint string
	recorder source.RequestRecorder
}

// NewAdapter creates a new AppLovin adapter.
// Parameters:
//   - cfg: endpoint, timeout and proxy; zero values fall back to defaults.
//   - recorder: stores each request URL before it is issued; may be nil.
// Returns:
//   - *Adapter: adapter with its own HTTP client.
func NewAdapter(cfg Config, recorder source.RequestRecorder) *Adapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Accept", "application/json")
	if cfg.HTTPProxy != "" {
		client.SetProxy(cfg.HTTPProxy)
	}

	return &Adapter{
		client:   client,
		endpoint: cfg.Endpoint,
		recorder: recorder,
	}
}

// GetSourceID returns the unique identifier for this source
func (a *Adapter) GetSourceID() string {
	return SourceID
}

// BuildURL returns the single-day report URL for apiKey and day.
func (a *Adapter) BuildURL(apiKey, day string) string {
	var b strings.Builder
	b.WriteString(a.endpoint)
	b.WriteString("?api_key=")
	b.WriteString(url.QueryEscape(apiKey))
	b.WriteString("&columns=")
	b.WriteString(url.QueryEscape(strings.Join(reportColumns, ",")))
	b.WriteString("&format=json&start=")
	b.WriteString(url.QueryEscape(day))
	b.WriteString("&end=")
	b.WriteString(url.QueryEscape(day))
	return b.String()
}

// FetchReport downloads the report for req. The request URL is recorded
// against the task before the call is made. No retries happen here.
func (a *Adapter) FetchReport(ctx context.Context, req source.ReportRequest) ([]byte, error) {
	reqURL := a.BuildURL(req.APIKey, req.Day)
	start := time.Now()

	if a.recorder != nil {
		if err := a.recorder.UpdateRequestURL(ctx, req.TaskID, reqURL); err != nil {
			return nil, domain.WrapTaskError(domain.KindStoreFailed, err, "update request url error")
		}
	}

	logger.CtxInfo(ctx, "[AppLovin] downJsonData start, app_id=%s, day=%s", req.AppID, req.Day)

	resp, err := a.client.R().
		SetContext(ctx).
		Get(reqURL)
	if err != nil {
		return nil, domain.WrapTaskError(domain.KindTransportFailed, err, "downJsonData error")
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, domain.NewTaskError(domain.KindTransportFailed,
			"request report response statusCode:%d", resp.StatusCode())
	}

	body := resp.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, domain.NewTaskError(domain.KindTransportFailed, "request report response entity is null")
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldSize:       len(body),
	}).Info(ctx, "[AppLovin] downJsonData end, app_id=%s, day=%s", req.AppID, req.Day)

	return body, nil
}
