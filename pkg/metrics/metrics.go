package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	TriggerManual   = "manual"
	TriggerAutosave = "autosave"
	TriggerInfo     = "info"
	TriggerImport   = "import"

	ResultOK    = "ok"
	ResultError = "error"
)

var (
	Saves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "naskah_saves_total",
		Help: "Document writes to the local store by trigger and result.",
	}, []string{"trigger", "result"})

	Exports = promauto.NewCounter(prometheus.CounterOpts{
		Name: "naskah_exports_total",
		Help: "Documents exported to JSON files.",
	})

	Imports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "naskah_imports_total",
		Help: "JSON file imports by result.",
	}, []string{"result"})
)

// Result maps an error to the result label.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
