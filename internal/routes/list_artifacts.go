package routes

import (
	"browshot/internal/schedule"
	"browshot/internal/storage"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

type ArtifactsResponse struct {
	ScreenshotID int64  `json:"screenshotID,omitempty"`
	Screenshot   string `json:"screenshot,omitempty"`
	HTML         string `json:"html,omitempty"`
}

// ListArtifacts returns the artifacts of the last successful run, base64
// encoded.
func ListArtifacts(scheduler *schedule.Scheduler, storageClient storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := scheduler.Get(r.PathValue("name"))
		if err != nil {
			http.NotFound(w, r)
			return
		}

		response := ArtifactsResponse{
			ScreenshotID: status.LastScreenshotID,
		}

		if status.ScreenshotURL != "" {
			data, err := storageClient.Get(r.Context(), status.ScreenshotURL)
			if err != nil {
				slog.Error(fmt.Sprintf("failed to get screenshot: %s", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			response.Screenshot = base64.StdEncoding.EncodeToString(data)
		}
		if status.HTMLURL != "" {
			if data, err := storageClient.Get(r.Context(), status.HTMLURL); err == nil {
				response.HTML = base64.StdEncoding.EncodeToString(data)
			}
		}

		b, err := json.Marshal(response)
		if err != nil {
			slog.Error(fmt.Sprintf("failed to marshal json: %s", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
	}
}
