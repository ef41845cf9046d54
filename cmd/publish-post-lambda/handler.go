package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fpang/gmb-post-worker/internal/gbp"
	"github.com/fpang/gmb-post-worker/internal/s3util"
	"github.com/fpang/gmb-post-worker/internal/store"
)

// The pipeline's collaborators are interfaces so handler tests can run
// against fakes. The concrete wiring happens once in init().

type tokenProvider interface {
	AccessToken(ctx context.Context, orgID, accountID string) (string, error)
}

type postStore interface {
	GetScheduledPost(ctx context.Context, postID, gmbID string) (*store.Post, error)
	ListMedia(ctx context.Context, postID, gmbID string) ([]store.MediaAsset, error)
	ReconcilePublishedPost(ctx context.Context, gmbID, postID string, post store.PostRecord, media []store.MediaRecord) ([]store.InsertedMedia, error)
}

type blobStore interface {
	PresignGet(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
	DeleteAll(ctx context.Context, keys []string) error
}

type publisher interface {
	CreateLocalPost(ctx context.Context, accountID, locationID string, payload *gbp.LocalPost, accessToken string) (*gbp.PublishResult, error)
	FetchMedia(ctx context.Context, url string) ([]byte, string, error)
}

type notifier interface {
	Notify(ctx context.Context, userID string, post *store.Post) error
}

// pipeline sequences one publish-and-reconcile run. One invocation
// processes exactly one post end to end; the only internal parallelism is
// across independent per-media operations.
type pipeline struct {
	tokens    tokenProvider
	posts     postStore
	blobs     blobStore
	publisher publisher
	notifier  notifier
}

// run executes the pipeline and maps every outcome to exactly one
// structured response. Diagnostic detail goes to the log, not the caller.
func (p *pipeline) run(ctx context.Context, event PublishEvent) Response {
	logger := log.With().
		Str("invocationId", uuid.NewString()).
		Str("postId", event.PostID).
		Str("gmbId", event.GmbID).
		Logger()

	if event.AccountID == "" || event.GmbID == "" || event.OrganizationID == "" || event.PostID == "" {
		logger.Error().Msg("Trigger event is missing required fields")
		return failureResponse(errors.New("event must carry accountId, gmb_id, organizationId, and post_id"))
	}

	accessToken, err := p.tokens.AccessToken(ctx, event.OrganizationID, event.AccountID)
	if err != nil {
		logger.Error().Err(err).Msg("Token exchange failed")
		return failureResponse(err)
	}

	post, err := p.posts.GetScheduledPost(ctx, event.PostID, event.GmbID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load post")
		return failureResponse(err)
	}

	// Re-delivered events find the post already out of SCHEDULED and stop
	// here, before any write or external call.
	if post.State != store.StateScheduled {
		logger.Info().Str("state", post.State).Msg("Post is not eligible for publishing")
		return ineligibleResponse("Post is not in SCHEDULED state")
	}

	oldMedia, err := p.posts.ListMedia(ctx, event.PostID, event.GmbID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load media")
		return failureResponse(err)
	}

	mediaItems, err := p.linkMedia(ctx, event.GmbID, oldMedia)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to presign media links")
		return failureResponse(err)
	}

	payload, err := gbp.BuildLocalPost(post, mediaItems)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build payload")
		return failureResponse(err)
	}

	result, err := p.publisher.CreateLocalPost(ctx, event.AccountID, event.GmbID, payload, accessToken)
	if err != nil {
		logger.Error().Err(err).Msg("Publish call failed")
		return failureResponse(err)
	}

	// The database transaction commits first so the row of record reflects
	// the platform state before any blob is touched; a crash between here
	// and the blob sync leaves at worst a transient orphan blob, repaired
	// by re-delivery or the reconciliation sweep.
	inserted, err := p.posts.ReconcilePublishedPost(ctx, event.GmbID, event.PostID, result.PostRecord(), result.MediaRecords())
	if err != nil {
		logger.Error().Err(err).Msg("Reconciliation failed")
		return failureResponse(err)
	}

	oldKeys := make([]string, 0, len(oldMedia))
	for _, m := range oldMedia {
		oldKeys = append(oldKeys, s3util.MediaKey(event.GmbID, m.ID))
	}
	if err := p.blobs.DeleteAll(ctx, oldKeys); err != nil {
		logger.Error().Err(err).Msg("Old blob cleanup failed")
		return failureResponse(err)
	}

	if err := p.storeNewMedia(ctx, event.GmbID, inserted); err != nil {
		logger.Error().Err(err).Msg("Failed to store published media")
		return failureResponse(err)
	}

	if event.UserID != "" && p.notifier != nil {
		if err := p.notifier.Notify(ctx, event.UserID, post); err != nil {
			logger.Warn().Err(err).Str("userId", event.UserID).Msg("Notification skipped")
		}
	}

	logger.Info().Str("gmbPostName", result.Name).Msg("Scheduled post published")
	return successResponse(result.Name)
}

// linkMedia presigns a temporary source link per media row, concurrently,
// preserving the load order.
func (p *pipeline) linkMedia(ctx context.Context, gmbID string, media []store.MediaAsset) ([]gbp.MediaItem, error) {
	if len(media) == 0 {
		return nil, nil
	}

	items := make([]gbp.MediaItem, len(media))
	g, ctx := errgroup.WithContext(ctx)
	for i, m := range media {
		i, m := i, m
		g.Go(func() error {
			link, err := p.blobs.PresignGet(ctx, s3util.MediaKey(gmbID, m.ID))
			if err != nil {
				return err
			}
			items[i] = gbp.MediaItem{
				SourceURL:   link,
				ContentType: m.ContentType,
				Description: m.Description,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// storeNewMedia fetches each published media body from the platform and
// stores it under the freshly inserted row's blob key, concurrently with an
// all-or-nothing join.
func (p *pipeline) storeNewMedia(ctx context.Context, gmbID string, inserted []store.InsertedMedia) error {
	if len(inserted) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, m := range inserted {
		m := m
		g.Go(func() error {
			if m.GoogleURL == "" {
				return fmt.Errorf("media row %d has no source URL", m.ID)
			}
			body, contentType, err := p.publisher.FetchMedia(ctx, m.GoogleURL)
			if err != nil {
				return err
			}
			return p.blobs.Put(ctx, s3util.MediaKey(gmbID, m.ID), body, contentType)
		})
	}
	return g.Wait()
}
