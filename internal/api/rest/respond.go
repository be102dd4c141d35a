package rest

import (
	"encoding/json"
	"net/http"
)

// User-visible messages. Unknown usernames and wrong passwords share the same
// text so responses cannot be used to probe which accounts exist.
const (
	msgInvalidCredentials = "Password or username incorrect"
	msgLocked             = "Too many failed attempts, try again later"
	msgNowLocked          = "Password or username incorrect, further attempts are locked"
	msgWeakPassword       = "Password not strong enough"
	msgDuplicateIdentity  = "Username already taken"
	msgPasswordReused     = "New password was used recently, choose a different one"
	msgUnauthenticated    = "Unauthorized"
	msgInternal           = "Something went wrong"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}
