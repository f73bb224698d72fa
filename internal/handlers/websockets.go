package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"roadwatch/internal/services/detection"
)

// DetectWebsocketHandler hands the upgraded connection to the
// detection service under the client id from the path.
func DetectWebsocketHandler(svc *detection.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := mux.Vars(r)["client_id"]
		if clientID == "" {
			http.Error(w, "client_id is required", http.StatusBadRequest)
			return
		}
		svc.HandleConnection(w, r, clientID)
	}
}
