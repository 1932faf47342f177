package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/icewatch/internal/controllers/icingcache"
	"github.com/chrissnell/icewatch/internal/log"
	"github.com/chrissnell/icewatch/internal/metrics"
	"github.com/chrissnell/icewatch/internal/pipeline"
	"github.com/chrissnell/icewatch/pkg/config"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Controller represents the REST server controller
type Controller struct {
	ctx            context.Context
	wg             *sync.WaitGroup
	configProvider config.ConfigProvider
	restConfig     config.RESTServerData
	Server         http.Server
	Stations       []config.StationData
	cache          *icingcache.Cache
	pipeline       *pipeline.Pipeline
	metrics        *metrics.Metrics
	logger         *zap.SugaredLogger
	handlers       *Handlers
	now            func() time.Time
}

// NewController creates a new REST server controller
func NewController(
	ctx context.Context,
	wg *sync.WaitGroup,
	configProvider config.ConfigProvider,
	rc config.RESTServerData,
	cache *icingcache.Cache,
	p *pipeline.Pipeline,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
) (*Controller, error) {
	if cache == nil || p == nil || m == nil {
		return nil, fmt.Errorf("REST server requires the icing cache, pipeline and metrics")
	}

	stations, err := configProvider.GetStations()
	if err != nil {
		return nil, fmt.Errorf("error loading stations: %v", err)
	}

	ctrl := &Controller{
		ctx:            ctx,
		wg:             wg,
		configProvider: configProvider,
		Stations:       stations,
		cache:          cache,
		pipeline:       p,
		metrics:        m,
		logger:         logger,
		now:            time.Now,
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		logger.Info("rest.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}

	// Set default HTTP port if not specified
	if rc.Port == 0 {
		logger.Info("rest.port not provided; defaulting to 8080")
		rc.Port = 8080
	}
	ctrl.restConfig = rc

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	log.Info("Starting REST server controller...")
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		log.Infof("REST server listening on %s", c.Server.Addr)
		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware(c.logger))

	router.HandleFunc("/stations", c.handlers.GetStations).Methods(http.MethodGet)
	router.HandleFunc("/stations/{fmisid:[0-9]+}", c.handlers.GetStationSeries).Methods(http.MethodGet)
	router.HandleFunc("/stations/{fmisid:[0-9]+}/panels", c.handlers.GetStationPanels).Methods(http.MethodGet)
	router.HandleFunc("/icing", c.handlers.GetIcing).Methods(http.MethodGet)
	router.Handle("/metrics", c.metrics.Handler())

	return router
}

// lookupStation resolves an FMISID against the configured stations, falling back
// to the built-in catalogue
func (c *Controller) lookupStation(fmisid int) (config.StationData, bool) {
	if s, ok := config.FindStation(c.Stations, fmisid); ok {
		return s, true
	}
	return config.FindStation(config.DefaultStations(), fmisid)
}
