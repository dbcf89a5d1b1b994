package services

import (
	"github.com/kingbora/easy-law-sub001/pkg/observability"
)

// ServiceConfig provides common configuration for all services
type ServiceConfig struct {
	Logger  observability.Logger
	Metrics observability.MetricsClient
	Tracer  observability.StartSpanFunc
}

// BaseService provides the observability plumbing shared by every service
type BaseService struct {
	config ServiceConfig
}

// NewBaseService creates a new base service. Missing observability
// collaborators are replaced with no-op implementations so services never
// have to nil-check them.
func NewBaseService(config ServiceConfig) BaseService {
	if config.Logger == nil {
		config.Logger = observability.NewNoopLogger()
	}
	if config.Metrics == nil {
		config.Metrics = observability.NewNoopMetricsClient()
	}
	if config.Tracer == nil {
		config.Tracer = observability.NoopStartSpan
	}
	return BaseService{config: config}
}
