package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	applog "fintrack/internal/log"
)

// Layout describes how calculators map to listeners.
type Layout struct {
	// Addr, when set, hosts every service on one listener.
	Addr string
	// Ports is used when Addr is empty: one listener per service.
	Ports map[Service]int
	Host  string
}

// BuildServers creates one server per listener described by layout.
func BuildServers(layout Layout, services []Service, opts Options) ([]*Server, error) {
	if len(services) == 0 {
		return nil, errors.New("no calculator services selected")
	}
	if layout.Addr != "" {
		return []*Server{NewServer(layout.Addr, services, opts)}, nil
	}
	servers := make([]*Server, 0, len(services))
	for _, svc := range services {
		port, ok := layout.Ports[svc]
		if !ok || port <= 0 {
			return nil, fmt.Errorf("no port configured for %s", svc)
		}
		addr := net.JoinHostPort(layout.Host, strconv.Itoa(port))
		servers = append(servers, NewServer(addr, []Service{svc}, opts))
	}
	return servers, nil
}

// RunAll serves every server until ctx is cancelled or one of them fails,
// then shuts all of them down within shutdownTimeout.
func RunAll(ctx context.Context, servers []*Server, shutdownTimeout time.Duration, logger *applog.Logger) error {
	if logger == nil {
		logger = applog.Discard()
	}
	g, gctx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.Info("Calculator server listening",
				applog.FieldAddr, srv.Addr,
				applog.FieldService, fmt.Sprint(srv.Services()))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server shutdown error", applog.FieldAddr, srv.Addr, applog.FieldError, err)
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
