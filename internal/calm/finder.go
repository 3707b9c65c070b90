package calm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sjawhar/aura-calm/internal/llm"
)

const finderSystemPrompt = `From the following list of available YouTube videos, choose the ONE video that best matches the user's request. ` +
	`Respond in strict JSON: {"videoId": the id of your choice}.

Available Videos:
%s`

// Match is a catalog video chosen for a request.
type Match struct {
	Video
	EmbedURL string `json:"embed_url"`
}

// VideoFinder asks a model to pick the catalog video closest to a free-text
// description.
type VideoFinder struct {
	client  llm.Client
	catalog Catalog
}

func NewVideoFinder(client llm.Client, catalog Catalog) *VideoFinder {
	return &VideoFinder{client: client, catalog: catalog}
}

// Find returns the chosen video. A blank prompt is ErrEmptyPrompt and an id
// outside the catalog is ErrNoMatchingVideo.
func (f *VideoFinder) Find(ctx context.Context, prompt string) (Match, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Match{}, ErrEmptyPrompt
	}

	videos, err := f.catalog.Videos(ctx)
	if err != nil {
		return Match{}, fmt.Errorf("load video catalog: %w", err)
	}
	if len(videos) == 0 {
		return Match{}, ErrNoMatchingVideo
	}

	var list strings.Builder
	for _, v := range videos {
		fmt.Fprintf(&list, "- %s: %s\n", v.ID, v.Description)
	}

	raw, err := f.client.Complete(ctx, llm.Request{
		JSON:      true,
		MaxTokens: 128,
		Messages: []llm.Message{
			{Role: "system", Content: fmt.Sprintf(finderSystemPrompt, strings.TrimRight(list.String(), "\n"))},
			{Role: "user", Content: "User Request: " + prompt},
		},
	})
	if err != nil {
		return Match{}, fmt.Errorf("find video: %w", err)
	}

	id := strings.TrimSpace(pickID(raw))
	video, ok, err := f.catalog.Video(ctx, id)
	if err != nil {
		return Match{}, fmt.Errorf("look up video %q: %w", id, err)
	}
	if !ok {
		return Match{}, fmt.Errorf("%w: model chose %q", ErrNoMatchingVideo, id)
	}
	return Match{Video: video, EmbedURL: fmt.Sprintf(embedURLFormat, video.ID)}, nil
}

// pickID reads videoId from a JSON reply, falling back to the bare reply
// for models that answer with only the id.
func pickID(raw string) string {
	text := strings.TrimSpace(raw)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if id := gjson.Get(text[start:end+1], "videoId"); id.Type == gjson.String {
			return id.Str
		}
	}
	return strings.Trim(text, "`\"' \n")
}
