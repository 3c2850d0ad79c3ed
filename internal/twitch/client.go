package twitch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nicklaw5/helix/v2"
)

// MaxBatchSize is the largest id batch one metadata lookup accepts.
const MaxBatchSize = 100

// VideoMeta is the slice of video metadata the aggregator needs: identity,
// owning channel, and the platform's "1h2m3s" duration string.
type VideoMeta struct {
	ID           string
	ChannelID    string
	ChannelLogin string
	Duration     string
}

// VideoAPI resolves video ids and channel archives. Satisfied by
// HelixClient in production and by fakes in tests.
type VideoAPI interface {
	// VideosByID resolves up to MaxBatchSize ids. Unresolvable ids are
	// simply absent from the result.
	VideosByID(ctx context.Context, ids []string) ([]VideoMeta, error)
	// ChannelVideos lists a channel's full archived video set.
	ChannelVideos(ctx context.Context, channelID string) ([]VideoMeta, error)
}

// HelixClient wraps the Twitch Helix API with an app access token.
type HelixClient struct {
	c *helix.Client
}

func NewHelixClient(clientID, clientSecret string) (*HelixClient, error) {
	c, err := helix.NewClient(&helix.Options{
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("create helix client: %w", err)
	}
	resp, err := c.RequestAppAccessToken(nil)
	if err != nil {
		return nil, fmt.Errorf("request app access token: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request app access token: %d %s", resp.StatusCode, resp.ErrorMessage)
	}
	c.SetAppAccessToken(resp.Data.AccessToken)
	return &HelixClient{c: c}, nil
}

func (h *HelixClient) VideosByID(ctx context.Context, ids []string) ([]VideoMeta, error) {
	if len(ids) > MaxBatchSize {
		return nil, fmt.Errorf("video id batch of %d exceeds the %d limit", len(ids), MaxBatchSize)
	}
	resp, err := h.c.GetVideos(&helix.VideosParams{IDs: ids, First: MaxBatchSize})
	if err != nil {
		return nil, fmt.Errorf("get videos: %w", err)
	}
	// Helix answers 404 when none of the requested ids resolve; for the
	// aggregator that is just an all-missing batch.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get videos: %d %s", resp.StatusCode, resp.ErrorMessage)
	}
	return toVideoMeta(resp.Data.Videos), nil
}

func (h *HelixClient) ChannelVideos(ctx context.Context, channelID string) ([]VideoMeta, error) {
	var out []VideoMeta
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := h.c.GetVideos(&helix.VideosParams{
			UserID: channelID,
			First:  MaxBatchSize,
			After:  cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("get channel videos for %s: %w", channelID, err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("get channel videos for %s: %d %s", channelID, resp.StatusCode, resp.ErrorMessage)
		}
		out = append(out, toVideoMeta(resp.Data.Videos)...)
		cursor = resp.Data.Pagination.Cursor
		if cursor == "" || len(resp.Data.Videos) == 0 {
			return out, nil
		}
	}
}

func toVideoMeta(videos []helix.Video) []VideoMeta {
	out := make([]VideoMeta, 0, len(videos))
	for _, v := range videos {
		out = append(out, VideoMeta{
			ID:           v.ID,
			ChannelID:    v.UserID,
			ChannelLogin: v.UserLogin,
			Duration:     v.Duration,
		})
	}
	return out
}
