package catalog

// Item is a playable catalog entry as stored in redis. Kind is one of
// video, slide or stream.
type Item struct {
	Id               string  `redis:"id" json:"id"`
	Kind             string  `redis:"kind" json:"kind"`
	Title            string  `redis:"title" json:"title"`
	MediaURL         string  `redis:"media_url" json:"media_url"`
	ImageURL         string  `redis:"image_url" json:"image_url"`
	AudioURL         string  `redis:"audio_url" json:"audio_url"`
	Category         string  `redis:"category" json:"category"`
	DurationHint     float64 `redis:"duration_hint" json:"duration_hint"`
	VolumeMultiplier float64 `redis:"volume_multiplier" json:"volume_multiplier"`
}

type Bumper struct {
	Id       string `json:"id"`
	MediaURL string `json:"media_url"`
}

type ShowStep struct {
	Kind string `json:"kind"`
	Id   string `json:"id"`
}
