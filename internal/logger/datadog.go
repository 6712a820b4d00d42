package logger

import (
	"context"
	"os"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

const defaultDataDogTimeout = 5 * time.Second

// DataDogWriter ships log lines to the Datadog Logs intake API.
// Each write submits a single log item; zerolog batching happens upstream
// via MultiLevelWriter, so this writer stays stateless.
type DataDogWriter struct {
	api      *datadogV2.LogsApi
	cfg      DataDog
	hostname string
}

// NewDataDogWriter creates a writer for the configured Datadog site.
func NewDataDogWriter(cfg DataDog) *DataDogWriter {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultDataDogTimeout
	}

	apiCfg := datadog.NewConfiguration()
	if len(cfg.Servers) > 0 {
		apiCfg.Servers = cfg.Servers
	}

	hostname, _ := os.Hostname()

	return &DataDogWriter{
		api:      datadogV2.NewLogsApi(datadog.NewAPIClient(apiCfg)),
		cfg:      cfg,
		hostname: hostname,
	}
}

// Write implements io.Writer. Failures are swallowed: log shipping must
// never break the caller's request path.
func (w *DataDogWriter) Write(p []byte) (int, error) {
	ctx, cancel := context.WithTimeout(w.apiContext(), w.cfg.Timeout)
	defer cancel()

	item := datadogV2.HTTPLogItem{
		Message:  string(p),
		Hostname: datadog.PtrString(w.hostname),
		Service:  datadog.PtrString(w.cfg.ServiceName),
		Ddsource: datadog.PtrString("zerolog"),
	}

	_, _, _ = w.api.SubmitLog(ctx, []datadogV2.HTTPLogItem{item})

	return len(p), nil
}

func (w *DataDogWriter) apiContext() context.Context {
	ctx := context.WithValue(
		context.Background(),
		datadog.ContextAPIKeys,
		map[string]datadog.APIKey{
			"apiKeyAuth": {Key: w.cfg.APIKey},
		},
	)

	if w.cfg.Site != "" {
		ctx = context.WithValue(ctx, datadog.ContextServerVariables, map[string]string{
			"site": w.cfg.Site,
		})
	}

	return ctx
}
