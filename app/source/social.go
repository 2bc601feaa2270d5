package source

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lysyi3m/stream-comb/app/feed"
)

const (
	searchPath     = "/xrpc/app.bsky.feed.searchPosts"
	MaxSocialLimit = 100
)

type searchResponse struct {
	Posts []json.RawMessage `json:"posts"`
}

type post struct {
	URI         string     `json:"uri" validate:"required"`
	Author      postAuthor `json:"author"`
	Record      postRecord `json:"record"`
	LikeCount   int        `json:"likeCount" validate:"gte=0"`
	RepostCount int        `json:"repostCount" validate:"gte=0"`
	ReplyCount  int        `json:"replyCount" validate:"gte=0"`
}

type postAuthor struct {
	DID         string `json:"did" validate:"required_without=Handle"`
	Handle      string `json:"handle" validate:"required_without=DID"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
}

type postRecord struct {
	Text      string `json:"text" validate:"required"`
	CreatedAt string `json:"createdAt"`
}

// SocialAdapter searches public posts. Any failure other than a rate limit is
// answered with MockItems.
type SocialAdapter struct {
	httpClient *http.Client
	validate   *validator.Validate
	userAgent  string
	clock      func() time.Time
}

var _ Adapter = (*SocialAdapter)(nil)

func NewSocialAdapter(httpClient *http.Client, userAgent string) *SocialAdapter {
	return &SocialAdapter{
		httpClient: httpClient,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		userAgent:  userAgent,
		clock:      time.Now,
	}
}

func (a *SocialAdapter) Fetch(ctx context.Context, endpoint feed.Endpoint) (Result, error) {
	now := a.clock()

	data, err := fetch(ctx, a.httpClient, SearchURL(endpoint), "application/json", a.userAgent)
	if err != nil {
		if IsRateLimited(err) {
			return Result{Items: []feed.Item{}, Format: "json", RateLimited: true}, err
		}
		return Result{Items: MockItems(now), IsMock: true}, fmt.Errorf("social search failed: %w", err)
	}

	items, skipped, err := a.decode(data, now)
	if err != nil {
		return Result{Items: MockItems(now), IsMock: true}, fmt.Errorf("failed to decode search response: %w", err)
	}

	if skipped > 0 {
		slog.Debug("Skipped invalid posts", "endpoint", endpoint.Name, "skipped", skipped, "kept", len(items))
	}

	return Result{Items: items, Format: "json", Skipped: skipped}, nil
}

// decode maps every post independently; a post that fails to decode or
// validate is skipped and counted.
func (a *SocialAdapter) decode(data []byte, now time.Time) ([]feed.Item, int, error) {
	var resp searchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, 0, err
	}

	items := make([]feed.Item, 0, len(resp.Posts))
	skipped := 0

	for i, raw := range resp.Posts {
		var p post
		if err := json.Unmarshal(raw, &p); err != nil {
			slog.Debug("Post decode failed", "index", i, "error", err)
			skipped++
			continue
		}

		if err := a.validate.Struct(p); err != nil {
			slog.Debug("Post validation failed", "index", i, "uri", p.URI, "error", err)
			skipped++
			continue
		}

		items = append(items, p.item(now))
	}

	return items, skipped, nil
}

func (p post) item(now time.Time) feed.Item {
	return feed.Item{
		ID:           p.URI,
		Source:       feed.SourceSocial,
		Author:       cmp.Or(strings.TrimSpace(p.Author.DisplayName), p.Author.Handle, "Unknown"),
		AuthorHandle: p.Author.Handle,
		AuthorAvatar: p.Author.Avatar,
		Content:      p.Record.Text,
		Timestamp:    feed.NormalizeTimestamp(p.Record.CreatedAt, now),
		URL:          PostURL(cmp.Or(p.Author.Handle, p.Author.DID), p.URI),
		Engagement: &feed.Engagement{
			Likes:   p.LikeCount,
			Reposts: p.RepostCount,
			Replies: p.ReplyCount,
		},
	}
}

// PostURL builds the public web link of a post from its author and AT URI.
func PostURL(actor, uri string) string {
	rkey := uri[strings.LastIndex(uri, "/")+1:]
	return "https://bsky.app/profile/" + actor + "/post/" + rkey
}

// SearchURL is the upstream request for a social endpoint.
func SearchURL(endpoint feed.Endpoint) string {
	limit := endpoint.Limit
	if limit <= 0 {
		limit = feed.DefaultSocialLimit
	}
	limit = min(limit, MaxSocialLimit)

	v := url.Values{}
	v.Set("q", cmp.Or(endpoint.Query, feed.DefaultSocialQuery))
	v.Set("limit", strconv.Itoa(limit))
	v.Set("sort", "latest")

	return strings.TrimRight(endpoint.URL, "/") + searchPath + "?" + v.Encode()
}
