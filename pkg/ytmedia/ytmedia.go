// Package ytmedia resolves metadata for YouTube-hosted catalog entries.
package ytmedia

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

var (
	ErrVideoNotFound      = errors.New("video not found")
	ErrVideoNotEmbeddable = errors.New("video is not embeddable")
	ErrNotYouTubeURL      = errors.New("not a youtube url")
)

type VideoData struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailUrl string `json:"thumbnail_url"`
}

// ExtractVideoId pulls the 11-character video id out of any of the
// common YouTube url shapes (watch, youtu.be, embed, live, shorts).
func ExtractVideoId(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")
	switch host {
	case "youtu.be":
		if id := strings.Trim(u.Path, "/"); id != "" {
			return id, nil
		}
	case "youtube.com", "m.youtube.com", "youtube-nocookie.com":
		if id := u.Query().Get("v"); id != "" {
			return id, nil
		}
		for _, prefix := range []string{"/embed/", "/live/", "/shorts/"} {
			if strings.HasPrefix(u.Path, prefix) {
				if id := strings.Trim(strings.TrimPrefix(u.Path, prefix), "/"); id != "" {
					return id, nil
				}
			}
		}
	}

	return "", ErrNotYouTubeURL
}

// EmbedURL builds the embeddable player url for a video id.
func EmbedURL(videoId string) string {
	return "https://www.youtube.com/embed/" + videoId
}

// Client fetches video metadata over HTTP.
type Client struct {
	httpClient *http.Client
	oembedURL  string
	watchURL   string
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		oembedURL:  "https://www.youtube.com/oembed",
		watchURL:   "https://youtu.be",
	}
}

// Get fetches title, author and thumbnail for a video id. Falls back
// to scraping the watch page when the video is not embeddable, since
// oEmbed refuses those.
func (c *Client) Get(videoId string) (*VideoData, error) {
	videoData, err := c.getWithOEmbed(videoId)
	if err != nil {
		if !errors.Is(err, ErrVideoNotEmbeddable) {
			return nil, fmt.Errorf("failed to get video data with oembed: %w", err)
		}

		videoData, err = c.getFromPage(videoId)
		if err != nil {
			return nil, fmt.Errorf("failed to get video data from page: %w", err)
		}
	}

	return videoData, nil
}

func (c *Client) getWithOEmbed(videoId string) (*VideoData, error) {
	url := fmt.Sprintf("%s?url=https://www.youtube.com/watch?v=%s", c.oembedURL, videoId)
	resp, err := c.httpClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusNotFound:
			return nil, ErrVideoNotFound
		case http.StatusUnauthorized:
			return nil, ErrVideoNotEmbeddable
		default:
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
	}

	var result VideoData
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode oembed response: %w", err)
	}

	return &result, nil
}
