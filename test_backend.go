package main

import (
	"encoding/json"
	"log"
	"net/http"
)

// Standalone echo backend for poking the gateway by hand. Register it as a
// service pointing at :9000 and proxied calls show up here with the
// gateway-injected X-API-Key and Referer headers.
func main() {
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"message": "Hello from test backend!",
			"path":    r.URL.Path,
			"method":  r.Method,
			"query":   r.URL.RawQuery,
			"api_key": r.Header.Get("X-API-Key"),
			"referer": r.Header.Get("Referer"),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)

		log.Printf("Received request: %s %s", r.Method, r.URL.Path)
	})

	log.Println("Test backend starting on port 9000")
	http.ListenAndServe(":9000", nil)
}
