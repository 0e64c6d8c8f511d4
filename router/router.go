package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	docHandler "naskahlokal/internal/document"
	"naskahlokal/middleware"
	"naskahlokal/socket"
)

func Setup(hub *socket.Hub, h *docHandler.DocumentHandler) http.Handler {
	mux := http.NewServeMux()

	// The upgrade needs the raw ResponseWriter, so /ws skips the logging wrapper.
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r)
	})
	mux.Handle("/metrics", promhttp.Handler())

	api := func(fn http.HandlerFunc) http.Handler {
		return middleware.LoggingMiddleware(fn)
	}
	mux.Handle("/api/documents", api(h.GetDocuments))
	mux.Handle("/api/documents/current", api(h.GetCurrent))
	mux.Handle("/api/documents/new", api(h.CreateDocument))
	mux.Handle("/api/documents/open", api(h.OpenDocument))
	mux.Handle("/api/documents/recent", api(h.LoadRecent))
	mux.Handle("/api/documents/save", api(h.SaveDocument))
	mux.Handle("/api/documents/close", api(h.CloseDocument))
	mux.Handle("/api/documents/info", api(h.UpdateInfo))
	mux.Handle("/api/documents/export", api(h.ExportDocument))
	mux.Handle("/api/documents/import", api(h.ImportDocument))

	return middleware.CORSMiddleware(mux)
}
