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
	archiverInstance *services.ArchiverFunction
	once             sync.Once
	initErr          error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleArchiveDocuments", handleArchiveDocuments)
}

func main() {}

// handleArchiveDocuments returns every PDF of a tender as a zip attachment.
// The tender id comes from the tenderId query parameter or a JSON body.
func handleArchiveDocuments(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		archiverInstance, initErr = services.NewArchiver(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: Archiver initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	req := models.TenderRequest{TenderID: r.URL.Query().Get("tenderId")}
	if req.TenderID == "" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Warn("Could not decode request body", "error", err)
			http.Error(w, "Bad Request: tenderId is required", http.StatusBadRequest)
			return
		}
	}

	name, data, err := archiverInstance.Process(r.Context(), req.TenderID)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(services.HTTPStatus(err))
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Status: "error", Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		slog.Error("Failed to write response", "error", err, "tenderId", req.TenderID)
	}
}
