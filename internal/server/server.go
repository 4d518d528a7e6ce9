package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

type Config struct {
	HTTPAddr      string
	GRPCAddr      string // empty disables gRPC
	ShutdownGrace time.Duration
	HTTP          HTTPConfig
}

// Server runs the HTTP API and, optionally, the gRPC extraction and health services.
type Server struct {
	cfg    Config
	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
	log    *zap.Logger
}

func New(cfg Config, proc Processor, exp Exporter, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg: cfg,
		http: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           NewRouter(proc, exp, cfg.HTTP, log),
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		log: log,
	}

	if cfg.GRPCAddr != "" {
		s.grpc = grpc.NewServer(grpc.UnaryInterceptor(unaryRequestContext(log)))
		s.health = health.NewServer()
		healthpb.RegisterHealthServer(s.grpc, s.health)
		RegisterExtractionServer(s.grpc, NewExtractionService(proc, log))
		reflection.Register(s.grpc)
	}
	return s
}

// Run serves until ctx is cancelled, then drains both servers within ShutdownGrace.
func (s *Server) Run(ctx context.Context) error {
	var lis net.Listener
	if s.grpc != nil {
		var err error
		if lis, err = net.Listen("tcp", s.cfg.GRPCAddr); err != nil {
			return fmt.Errorf("grpc listen %s: %w", s.cfg.GRPCAddr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("server.http.listening", zap.String("addr", s.cfg.HTTPAddr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})

	if s.grpc != nil {
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		g.Go(func() error {
			s.log.Info("server.grpc.listening", zap.String("addr", s.cfg.GRPCAddr))
			if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc serve: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("server.shutdown.start")
		grace := s.cfg.ShutdownGrace
		if grace <= 0 {
			grace = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()

		if s.grpc != nil {
			s.health.Shutdown()
			done := make(chan struct{})
			go func() {
				s.grpc.GracefulStop()
				close(done)
			}()
			select {
			case <-done:
			case <-shutdownCtx.Done():
				s.grpc.Stop()
			}
		}
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		s.log.Info("server.shutdown.done")
		return nil
	})

	return g.Wait()
}
