package controller

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

type envelope map[string]any

func (c controller) writeJSON(w http.ResponseWriter, status int, data envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Warn("failed to write json response", "error", err)
	}
}

func (c controller) generateTimeBasedId() string {
	return fmt.Sprintf("%d-%04d", time.Now().UnixMicro(), rand.Intn(10000))
}
