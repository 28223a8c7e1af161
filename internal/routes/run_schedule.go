package routes

import (
	"browshot/internal/schedule"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// RunSchedule captures the schedule immediately and answers once the
// artifacts are stored. A failed capture is reported as 502 with the
// schedule status, which carries the error.
func RunSchedule(scheduler *schedule.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")

		statusCode := http.StatusOK
		status, err := scheduler.Run(r.Context(), name)
		if err != nil {
			switch {
			case errors.Is(err, schedule.ErrNotFound):
				http.NotFound(w, r)
				return
			case errors.Is(err, schedule.ErrAlreadyRunning):
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			slog.Error(fmt.Sprintf("failed to run schedule %s: %s", name, err))
			statusCode = http.StatusBadGateway
		}

		b, err := json.Marshal(status)
		if err != nil {
			slog.Error(fmt.Sprintf("failed to marshal json: %s", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_, _ = w.Write(b)
	}
}
