package controller

import (
	"net/http"
	"strconv"
)

func (c controller) nowPlaying(w http.ResponseWriter, r *http.Request) {
	c.writeJSON(w, http.StatusOK, envelope{"data": c.channelService.NowPlaying(r.Context())})
}

func (c controller) getHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.writeJSON(w, http.StatusBadRequest, envelope{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	entries, err := c.channelService.GetHistory(r.Context(), limit)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to get history", "error", err)
		c.writeJSON(w, http.StatusInternalServerError, envelope{"error": "failed to get history"})
		return
	}

	c.writeJSON(w, http.StatusOK, envelope{"data": entries})
}
