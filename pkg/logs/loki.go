package logs

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/grafana/loki-client-go/loki"
	promconfig "github.com/prometheus/common/config"
	"github.com/prometheus/common/model"
	slogloki "github.com/samber/slog-loki/v3"

	"github.com/Alijeyrad/rookie_backend/config"
)

const lokiPushPath = "/loki/api/v1/push"

func newLokiHandler(cfg *config.Config, level slog.Level) (slog.Handler, func(), error) {
	lc := cfg.Logging.Output.Loki

	endpoint := strings.TrimSuffix(lc.Endpoint, "/")
	if !strings.HasSuffix(endpoint, lokiPushPath) {
		endpoint += lokiPushPath
	}

	clientCfg, err := loki.NewDefaultConfig(endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("loki config: %w", err)
	}
	clientCfg.TenantID = lc.TenantID
	if lc.Username != "" {
		clientCfg.Client.BasicAuth = &promconfig.BasicAuth{
			Username: lc.Username,
			Password: promconfig.Secret(lc.Password),
		}
	}
	clientCfg.ExternalLabels.LabelSet = model.LabelSet{
		"service": model.LabelValue(cfg.Observability.ServiceName),
		"env":     model.LabelValue(cfg.Server.Environment),
	}

	client, err := loki.New(clientCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("loki client: %w", err)
	}

	h := slogloki.Option{Level: level, Client: client}.NewLokiHandler()
	return h, client.Stop, nil
}
