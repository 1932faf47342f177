// Package grpc provides the gRPC controller exposing service health and reflection.
package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/chrissnell/icewatch/internal/log"
	"github.com/chrissnell/icewatch/pkg/config"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-checked service name for icing data
const ServiceName = "icewatch.Icing"

// Controller represents the gRPC controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	Server     *grpc.Server
	Health     *health.Server
	GRPCConfig *config.GRPCData
	ready      <-chan struct{}
	listener   net.Listener
}

// NewController creates a new gRPC controller instance. Health reports NOT_SERVING
// until ready is closed.
func NewController(ctx context.Context, wg *sync.WaitGroup, grpcConfig config.GRPCData, ready <-chan struct{}) (*Controller, error) {
	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		GRPCConfig: &grpcConfig,
		ready:      ready,
	}

	// Create gRPC server with optional TLS
	if grpcConfig.Cert != "" && grpcConfig.Key != "" {
		creds, err := credentials.NewServerTLSFromFile(grpcConfig.Cert, grpcConfig.Key)
		if err != nil {
			return nil, fmt.Errorf("could not create TLS server from keypair: %v", err)
		}
		ctrl.Server = grpc.NewServer(grpc.Creds(creds))
	} else {
		ctrl.Server = grpc.NewServer()
	}

	if grpcConfig.Port == 0 {
		ctrl.GRPCConfig.Port = 50051
	}

	ctrl.Health = health.NewServer()
	ctrl.Health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	ctrl.Health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	// Register the health service and reflection
	healthpb.RegisterHealthServer(ctrl.Server, ctrl.Health)
	reflection.Register(ctrl.Server)

	return ctrl, nil
}

// StartController starts the gRPC controller
func (c *Controller) StartController() error {
	log.Info("Starting gRPC controller...")

	listenAddr := fmt.Sprintf("%s:%v", c.GRPCConfig.ListenAddr, c.GRPCConfig.Port)
	l, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("gRPC controller could not create listener: %v", err)
	}
	c.listener = l

	c.wg.Add(2)

	go func() {
		defer c.wg.Done()
		log.Infof("gRPC controller listening on %s", l.Addr())
		if err := c.Server.Serve(l); err != nil {
			log.Errorf("gRPC controller serve error: %v", err)
		}
	}()

	go func() {
		defer c.wg.Done()
		c.watchReadiness()
	}()

	return nil
}

// Addr returns the address the server listens on, once started
func (c *Controller) Addr() net.Addr {
	if c.listener == nil {
		return nil
	}
	return c.listener.Addr()
}

func (c *Controller) watchReadiness() {
	select {
	case <-c.ready:
		log.Info("icing cache ready; gRPC health is SERVING")
		c.Health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		c.Health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	case <-c.ctx.Done():
	}

	<-c.ctx.Done()
	c.StopController()
}

// StopController stops the gRPC controller
func (c *Controller) StopController() {
	log.Info("Stopping gRPC controller...")
	c.Health.Shutdown()
	if c.Server != nil {
		c.Server.GracefulStop()
	}
}
