package app

import (
	"context"
	"fmt"
	"os"

	kitlog "github.com/go-kit/log"
	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/server"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zachfi/streamtitle/modules/poller"
)

const (
	Server string = "server"

	Poller string = "poller"

	All string = "all"
)

func (a *App) setupModuleManager() error {
	mm := modules.NewManager(kitlog.NewLogfmtLogger(os.Stderr))
	mm.RegisterModule(Server, a.initServer, modules.UserInvisibleModule)

	mm.RegisterModule(Poller, a.initPoller)

	mm.RegisterModule(All, nil)

	deps := map[string][]string{
		Poller: {Server},

		All: {Poller},
	}

	for mod, targets := range deps {
		if err := mm.AddDependency(mod, targets...); err != nil {
			return err
		}
	}

	a.ModuleManager = mm

	return nil
}

func (a *App) initPoller() (services.Service, error) {
	p, err := poller.New(a.cfg.Poller, a.logger, prometheus.DefaultRegisterer)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init "+Poller)
	}

	a.Server.HTTP.Handle("/titles", p)

	return p, nil
}

func (a *App) initServer() (services.Service, error) {
	a.cfg.Server.MetricsNamespace = metricsNamespace
	a.cfg.Server.ExcludeRequestInLog = true
	a.cfg.Server.RegisterInstrumentation = true
	a.cfg.Server.Log = kitlog.With(kitlog.NewLogfmtLogger(os.Stderr), "module", Server)

	srv, err := server.New(a.cfg.Server)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create server")
	}
	a.Server = srv

	serverDone := make(chan error, 1)

	running := func(ctx context.Context) error {
		go func() {
			defer close(serverDone)
			serverDone <- srv.Run()
		}()

		select {
		case <-ctx.Done():
			return nil
		case err := <-serverDone:
			if err != nil {
				return err
			}
			return fmt.Errorf("server stopped unexpectedly")
		}
	}

	stopping := func(_ error) error {
		// The server keeps serving /titles and /metrics until every other
		// module has terminated.
		for m, s := range a.serviceMap {
			if m == Server {
				continue
			}
			_ = s.AwaitTerminated(context.Background())
		}

		srv.Shutdown()
		<-serverDone
		a.logger.Info("server stopped")
		return nil
	}

	return services.NewBasicService(nil, running, stopping), nil
}
