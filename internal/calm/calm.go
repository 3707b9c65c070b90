// Package calm serves the calm-corner content: mindfulness tips, the
// ambient track, and a small catalog of soothing videos an LLM can pick
// from.
package calm

import (
	"context"
	"errors"
	"sync"
)

// ErrNoMatchingVideo is returned when no catalog video fits a request.
var ErrNoMatchingVideo = errors.New("no matching video")

// ErrEmptyPrompt is returned for a blank video request.
var ErrEmptyPrompt = errors.New("please enter a prompt to find a video")

const embedURLFormat = "https://www.youtube.com/embed/%s?autoplay=1"

type Video struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// Catalog is the read side of the calm-corner content.
type Catalog interface {
	Videos(ctx context.Context) ([]Video, error)
	Video(ctx context.Context, id string) (Video, bool, error)
	Tips(ctx context.Context) ([]string, error)
}

// DefaultVideos is the built-in soothing video catalog.
var DefaultVideos = []Video{
	{ID: "L_LUpnjgPso", Description: "Peaceful beach with gentle waves and sunset"},
	{ID: "q76bMs-mupI", Description: "Serene forest with sunlight filtering through trees"},
	{ID: "2G8LAiHSCAs", Description: "Calm mountain lake with sky reflection"},
	{ID: "t2AlVzEyS4c", Description: "Cozy fireplace with crackling sounds"},
	{ID: "q5B4L2P3oY0", Description: "Lush green nature scenes with relaxing music"},
	{ID: "h2insFY-20A", Description: "Gentle rain sounds for sleeping"},
	{ID: "qYg1iRBWj3I", Description: "Beautiful lavender fields in Provence, France"},
}

// DefaultTips are the built-in mindfulness tips.
var DefaultTips = []string{
	"Take a few deep breaths, inhaling through your nose and exhaling slowly through your mouth.",
	"Gently stretch your neck and shoulders to release physical tension.",
	"Focus on a positive memory or a place where you feel completely at peace.",
	"Listen to the calming music and allow your mind to drift.",
	"Practice mindfulness by noticing the sensations around you without judgment.",
}

// StaticCatalog is an in-memory Catalog.
type StaticCatalog struct {
	mu     sync.RWMutex
	videos []Video
	tips   []string
}

func NewStaticCatalog(videos []Video, tips []string) *StaticCatalog {
	return &StaticCatalog{
		videos: append([]Video(nil), videos...),
		tips:   append([]string(nil), tips...),
	}
}

func (c *StaticCatalog) Videos(context.Context) ([]Video, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Video(nil), c.videos...), nil
}

func (c *StaticCatalog) Video(_ context.Context, id string) (Video, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, v := range c.videos {
		if v.ID == id {
			return v, true, nil
		}
	}
	return Video{}, false, nil
}

func (c *StaticCatalog) Tips(context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.tips...), nil
}
