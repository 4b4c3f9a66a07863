package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Project workflow metrics.
var (
	// ProjectSubmissionsTotal counts single submissions by resulting status.
	ProjectSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "project_submissions_total",
			Help:      "Submitted projects by resulting status",
		},
		[]string{"status"},
	)

	// ProjectUpdatesTotal counts successful project updates.
	ProjectUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "project_updates_total",
			Help:      "Updated projects",
		},
	)

	// BulkImportsTotal counts bulk uploads by outcome ("ok" / "error").
	BulkImportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_imports_total",
			Help:      "Bulk CSV imports by outcome",
		},
		[]string{"outcome"},
	)

	// BulkImportedProjectsTotal counts projects inserted by bulk imports.
	BulkImportedProjectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_imported_projects_total",
			Help:      "Projects inserted through bulk import",
		},
	)

	// SimilarResultsReturned observes the number of matches per similarity query.
	SimilarResultsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "similar_results_returned",
			Help:      "Matches returned per similarity query",
			Buckets:   []float64{0, 1, 3, 5, 10, 25, 50, 100},
		},
	)
)

var registerProject sync.Once

// RegisterProjectMetrics registers project collectors on the default registry.
func RegisterProjectMetrics() {
	registerProject.Do(func() {
		prometheus.MustRegister(
			ProjectSubmissionsTotal,
			ProjectUpdatesTotal,
			BulkImportsTotal,
			BulkImportedProjectsTotal,
			SimilarResultsReturned,
		)
	})
}
