package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/tenderflow/internal/models"
	"github.com/Lllllllleong/tenderflow/internal/services"
)

var (
	embedderInstance *services.TenderEmbedderFunction
	once             sync.Once
	initErr          error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleEmbedTender", handleEmbedTender)
}

func main() {}

// handleEmbedTender embeds the unfinished documents of a tender and returns the run report.
func handleEmbedTender(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		embedderInstance, initErr = services.NewTenderEmbedder(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: Tender embedder initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.TenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	report, err := embedderInstance.Process(r.Context(), &req)
	if err != nil {
		// Error is already logged with context in the Process method.
		writeJSON(w, services.HTTPStatus(err), models.ErrorResponse{Status: "error", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
