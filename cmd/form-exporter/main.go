package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/tenderflow/internal/models"
	"github.com/Lllllllleong/tenderflow/internal/services"
)

var (
	exporterInstance *services.FormExporterFunction
	once             sync.Once
	initErr          error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleExportForms", handleExportForms)
}

func main() {}

// handleExportForms streams the merged form pages of a tender as a PDF attachment.
func handleExportForms(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		exporterInstance, initErr = services.NewFormExporter(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: Form exporter initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.FormExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := exporterInstance.Process(r.Context(), &req)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(services.HTTPStatus(err))
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Status: "error", Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", res.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	if res.Key != "" {
		w.Header().Set("X-Export-Key", res.Key)
	}
	if _, err := w.Write(res.Data); err != nil {
		slog.Error("Failed to write response", "error", err, "tenderId", req.TenderID)
	}
}
