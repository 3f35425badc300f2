package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/tenderflow/internal/models"
	"github.com/Lllllllleong/tenderflow/internal/services"
)

var (
	dispatcherInstance *services.TenderDispatcherFunction
	once               sync.Once
	initErr            error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleDispatchTenders", handleDispatchTenders)
}

func main() {}

// handleDispatchTenders starts the processing workflow for every qualifying tender. An empty body uses the defaults.
func handleDispatchTenders(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		dispatcherInstance, initErr = services.NewTenderDispatcher(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: Tender dispatcher initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := dispatcherInstance.Process(r.Context(), &req)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(services.HTTPStatus(err))
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Status: "error", Error: err.Error()})
		return
	}
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
