package stats

import (
	"github.com/ether/collabpads-go/lib"
	"github.com/ether/collabpads-go/lib/settings"
	"github.com/ether/collabpads-go/lib/ws"
	"github.com/gofiber/adaptor/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Init(store *lib.InitStore) {
	checks := []Checker{
		DBChecker{store.Store},
		HubChecker{store.Hub},
	}

	store.C.Get("/health", Handler(
		settings.GitVersion(),
		store.RetrievedSettings.Version,
		"collabpads-hub",
		checks,
	))

	if store.RetrievedSettings.EnableMetrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		reg.MustRegister(ws.Collectors()...)
		reg.MustRegister(store.Collectors...)
		handler := promhttp.HandlerFor(
			reg,
			promhttp.HandlerOpts{},
		)
		store.C.Get("/metrics", adaptor.HTTPHandler(handler))
	}
}
