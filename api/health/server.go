// Package health exposes the standard gRPC health service so supervisors
// can tell whether the feed is still being consumed.
package health

import (
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"feedbook/infra/logging"
)

// Service is the name reported alongside the overall ("") status.
const Service = "feedbook.Feed"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	log    zerolog.Logger
}

func New(log zerolog.Logger) *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		log:    logging.Component(log, "health"),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)
	s.SetServing(false)
	return s
}

// SetServing flips both the overall and the feed status.
func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(Service, st)
	s.log.Debug().Str("status", st.String()).Msg("health changed")
}

// Serve blocks until Stop. It returns nil after a clean stop.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info().Str("addr", lis.Addr().String()).Msg("serving")
	if err := s.grpc.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
