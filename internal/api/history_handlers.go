package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/vigil-dev/vigil/internal/history"
)

// HandleGetHistory returns a page of a monitor's check history,
// newest first
func HandleGetHistory(store *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			http.Error(w, "Invalid monitor ID", http.StatusBadRequest)
			return
		}

		f := history.Filter{Limit: 100}

		q := r.URL.Query()
		if v := q.Get("limit"); v != "" {
			limit, err := strconv.Atoi(v)
			if err != nil || limit < 1 || limit > 1000 {
				http.Error(w, "limit must be between 1 and 1000", http.StatusBadRequest)
				return
			}
			f.Limit = limit
		}
		if v := q.Get("offset"); v != "" {
			offset, err := strconv.Atoi(v)
			if err != nil || offset < 0 {
				http.Error(w, "offset must be non-negative", http.StatusBadRequest)
				return
			}
			f.Offset = offset
		}
		if v := q.Get("status"); v != "" {
			status, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "status must be an integer", http.StatusBadRequest)
				return
			}
			f.Status = &status
		}
		if v := q.Get("from"); v != "" {
			from, err := time.Parse(time.RFC3339, v)
			if err != nil {
				http.Error(w, "from must be RFC3339", http.StatusBadRequest)
				return
			}
			f.DateFrom = &from
		}
		if v := q.Get("to"); v != "" {
			to, err := time.Parse(time.RFC3339, v)
			if err != nil {
				http.Error(w, "to must be RFC3339", http.StatusBadRequest)
				return
			}
			f.DateTo = &to
		}

		results, err := store.Query(id, f)
		if err != nil {
			http.Error(w, "Failed to query history", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(results)
	}
}

// HandleGetLatestCheck returns a monitor's most recent check result
func HandleGetLatestCheck(store *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			http.Error(w, "Invalid monitor ID", http.StatusBadRequest)
			return
		}

		latest, err := store.Latest(id)
		if err != nil {
			http.Error(w, "Failed to query history", http.StatusInternalServerError)
			return
		}
		if latest == nil {
			http.Error(w, "No check results yet", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(latest)
	}
}
