package grpchandler

import (
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-check name reported for the notification service.
const ServiceName = "hms.notification.v1.NotificationService"

// HealthHandler reports serving status over the standard gRPC health protocol.
// The status flips to NOT_SERVING once shutdown starts so load balancers
// drain the instance before connections are force-closed.
type HealthHandler struct {
	srv    *health.Server
	logger *zap.Logger
}

func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	h := &HealthHandler{srv: health.NewServer(), logger: logger}
	h.srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return h
}

// Draining marks the service and the overall server NOT_SERVING.
func (h *HealthHandler) Draining() {
	h.srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	h.srv.Shutdown()
	h.logger.Info("gRPC health set to NOT_SERVING")
}

// NewGRPCServer builds the gRPC server with health and reflection registered.
func NewGRPCServer(h *HealthHandler) *grpc.Server {
	s := grpc.NewServer(
		grpc.MaxConcurrentStreams(100),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 15 * time.Minute,
			Time:              5 * time.Minute,
			Timeout:           time.Minute,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             30 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	healthpb.RegisterHealthServer(s, h.srv)
	reflection.Register(s)
	return s
}
