package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics regroupe les compteurs Prometheus du cycle d'attribution PTHN
type Metrics struct {
	EnregistrementsTotal prometheus.Counter
	DoublonsTotal        prometheus.Counter
	ConflitsTotal        prometheus.Counter
	RetriesTotal         prometheus.Counter
	TimeoutsTotal        prometheus.Counter
	CapaciteEpuiseeTotal prometheus.Counter
	EnregistrementDuree  prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		EnregistrementsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registre_patient_enregistrements_total",
			Help: "Nombre total d'identités enregistrées avec un PTHN attribué",
		}),
		DoublonsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registre_patient_doublons_total",
			Help: "Nombre d'enregistrements refusés car l'identité possédait déjà un PTHN",
		}),
		ConflitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registre_patient_conflits_allocation_total",
			Help: "Nombre de conflits de concurrence rencontrés pendant l'attribution",
		}),
		RetriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registre_patient_retries_total",
			Help: "Nombre de tentatives rejouées du protocole complet",
		}),
		TimeoutsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registre_patient_timeouts_allocation_total",
			Help: "Nombre d'attentes de verrou dépassant le délai borné",
		}),
		CapaciteEpuiseeTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registre_patient_capacite_epuisee_total",
			Help: "Nombre de demandes refusées pour capacité annuelle épuisée",
		}),
		EnregistrementDuree: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "registre_patient_enregistrement_duree_seconds",
			Help:    "Durée du protocole d'enregistrement complet, retries inclus",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveEnregistrement(dureeSeconds float64) {
	m.EnregistrementsTotal.Inc()
	m.EnregistrementDuree.Observe(dureeSeconds)
}

func (m *Metrics) IncrementDoublons() {
	m.DoublonsTotal.Inc()
}

func (m *Metrics) IncrementConflits() {
	m.ConflitsTotal.Inc()
}

func (m *Metrics) IncrementRetries() {
	m.RetriesTotal.Inc()
}

func (m *Metrics) IncrementTimeouts() {
	m.TimeoutsTotal.Inc()
}

func (m *Metrics) IncrementCapaciteEpuisee() {
	m.CapaciteEpuiseeTotal.Inc()
}
