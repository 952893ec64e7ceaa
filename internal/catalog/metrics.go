package catalog

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Products     prometheus.Gauge
	StoreErrors  *prometheus.CounterVec
	CorruptLoads prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Products: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_products",
			Help: "Products in the catalog after the last load or save",
		}),
		StoreErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_store_errors_total",
				Help: "Failed catalog store operations",
			},
			[]string{"op"},
		),
		CorruptLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_corrupt_loads_total",
			Help: "Loads that found an unparseable catalog document",
		}),
	}

	reg.MustRegister(m.Products, m.StoreErrors, m.CorruptLoads)
	return m
}

func (m *Metrics) setProducts(n int) {
	if m == nil {
		return
	}
	m.Products.Set(float64(n))
}

func (m *Metrics) storeError(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) corruptLoad() {
	if m == nil {
		return
	}
	m.CorruptLoads.Inc()
}
