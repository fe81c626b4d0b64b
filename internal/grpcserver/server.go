package grpcserver

import (
	"fmt"
	"log/slog"
	"net"

	"charity-service/internal/metrics"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// LedgerService is the health service name reported for the ledger.
const LedgerService = "charity.v1.Ledger"

// Server exposes the gRPC health protocol so orchestrators can probe the
// service over gRPC as well as HTTP.
type Server struct {
	server *grpc.Server
	health *health.Server
	port   string
	logger *slog.Logger
}

func New(port string, m *metrics.Metrics, logger *slog.Logger) *Server {
	if m == nil {
		m = metrics.NewMock()
	}

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(m.Grpc.UnaryServerInterceptor()),
	)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(LedgerService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	return &Server{
		server: server,
		health: healthServer,
		port:   port,
		logger: logger,
	}
}

// SetServing flips the reported status of every service.
func (s *Server) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(LedgerService, status)
}

// Run listens on the configured port and blocks until Stop.
func (s *Server) Run() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port: %w", err)
	}
	s.logger.Info("gRPC server starting", "port", s.port)
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
