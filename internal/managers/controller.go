package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrissnell/icewatch/internal/controllers/grpc"
	"github.com/chrissnell/icewatch/internal/controllers/icingcache"
	"github.com/chrissnell/icewatch/internal/controllers/restserver"
	"github.com/chrissnell/icewatch/internal/metrics"
	"github.com/chrissnell/icewatch/internal/pipeline"
	"github.com/chrissnell/icewatch/pkg/config"
	"go.uber.org/zap"
)

// ControllerManager interface for the controller manager
type ControllerManager interface {
	StartControllers() error
}

// Controller is an interface that provides standard methods for various controller backends
type Controller interface {
	StartController() error
}

// NewControllerManager creates a new controller manager. The icing cache controller is
// always created, since the REST and gRPC controllers serve what it computes.
func NewControllerManager(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, logger *zap.SugaredLogger) (ControllerManager, error) {
	controllerConfigs, err := configProvider.GetControllers()
	if err != nil {
		return nil, fmt.Errorf("error loading controller configuration: %v", err)
	}

	p, err := pipeline.NewFromConfig(configProvider, logger)
	if err != nil {
		return nil, fmt.Errorf("error creating icing pipeline: %v", err)
	}

	cm := &controllerManager{
		ctx:            ctx,
		wg:             wg,
		configProvider: configProvider,
		logger:         logger,
		pipeline:       p,
		cache:          icingcache.NewCache(),
		metrics:        metrics.New(),
		controllers:    make([]Controller, 0),
	}

	// The cache controller goes first so that the others can follow its readiness
	cacheConfig := config.IcingCacheData{}
	for _, cc := range controllerConfigs {
		if cc.Type == "icingcache" && cc.IcingCache != nil {
			cacheConfig = *cc.IcingCache
		}
	}
	cm.icingCache, err = icingcache.NewController(ctx, wg, configProvider, cacheConfig, p, cm.cache, cm.metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("error creating controller: %v", err)
	}
	cm.controllers = append(cm.controllers, cm.icingCache)

	// Create controllers based on configuration
	for _, con := range controllerConfigs {
		if con.Type == "icingcache" {
			continue
		}
		controller, err := cm.createController(con)
		if err != nil {
			return nil, fmt.Errorf("error creating controller: %v", err)
		}
		cm.controllers = append(cm.controllers, controller)
	}

	return cm, nil
}

type controllerManager struct {
	ctx            context.Context
	wg             *sync.WaitGroup
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
	pipeline       *pipeline.Pipeline
	cache          *icingcache.Cache
	metrics        *metrics.Metrics
	icingCache     *icingcache.Controller
	controllers    []Controller
}

func (c *controllerManager) StartControllers() error {
	c.logger.Info("Starting controller manager...")

	for _, controller := range c.controllers {
		err := controller.StartController()
		if err != nil {
			return fmt.Errorf("error starting controller: %v", err)
		}
	}

	c.logger.Infof("Started %d controllers successfully", len(c.controllers))
	return nil
}

// createController creates a controller based on the controller configuration
func (cm *controllerManager) createController(cc config.ControllerData) (Controller, error) {
	switch cc.Type {
	case "restserver", "rest":
		if cc.RESTServer == nil {
			cc.RESTServer = &config.RESTServerData{}
		}
		return restserver.NewController(cm.ctx, cm.wg, cm.configProvider, *cc.RESTServer, cm.cache, cm.pipeline, cm.metrics, cm.logger)
	case "grpc":
		if cc.GRPC == nil {
			cc.GRPC = &config.GRPCData{}
		}
		return grpc.NewController(cm.ctx, cm.wg, *cc.GRPC, cm.icingCache.Ready())
	default:
		return nil, fmt.Errorf("unknown controller type: %s", cc.Type)
	}
}
