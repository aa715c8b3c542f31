package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments of an orchestrator. A nil
// *Metrics records nothing.
type Metrics struct {
	documents     *prometheus.CounterVec
	chunksWritten prometheus.Counter
	chunksFailed  prometheus.Counter
	chunksSkipped prometheus.Counter
	extractions   *prometheus.CounterVec
	downloads     *prometheus.CounterVec
	docDuration   prometheus.Histogram
}

// NewMetrics creates the instruments and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	buckets := []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
	m := &Metrics{
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tfk_ingest_documents_total",
			Help: "Documents that reached a terminal state, by state.",
		}, []string{"state", "doc_type"}),
		chunksWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tfk_ingest_chunks_written_total",
			Help: "Chunks written to the vector store.",
		}),
		chunksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tfk_ingest_chunks_failed_total",
			Help: "Chunks that could not be written even individually.",
		}),
		chunksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tfk_ingest_chunks_skipped_total",
			Help: "Chunks skipped because the log already records them.",
		}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tfk_ingest_extractions_total",
			Help: "LLM extraction results, by outcome.",
		}, []string{"outcome"}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tfk_ingest_downloads_total",
			Help: "Remote document fetches, by result.",
		}, []string{"result"}),
		docDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tfk_ingest_document_seconds",
			Help:    "Time spent on one document.",
			Buckets: buckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.documents,
			m.chunksWritten, m.chunksFailed, m.chunksSkipped,
			m.extractions, m.downloads,
			m.docDuration,
		)
	}
	return m
}

func (m *Metrics) document(res *DocumentResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(string(res.State), string(res.Doc.Type)).Inc()
	m.chunksWritten.Add(float64(res.Written))
	m.chunksFailed.Add(float64(res.Failed))
	m.chunksSkipped.Add(float64(res.Skipped))
	m.docDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) extraction(outcome string) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) download(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.downloads.WithLabelValues(result).Inc()
}
