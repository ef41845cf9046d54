package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/fpang/gmb-post-worker/internal/gbp"
	"github.com/fpang/gmb-post-worker/internal/store"
)

// --- Fakes ---

type fakeTokens struct {
	token string
	err   error
	calls int
}

func (f *fakeTokens) AccessToken(ctx context.Context, orgID, accountID string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

type fakePosts struct {
	post  *store.Post
	media []store.MediaAsset

	reconcileErr    error
	reconciled      bool
	reconciledGmbID string
	reconciledPost  store.PostRecord
	reconciledMedia []store.MediaRecord
	inserted        []store.InsertedMedia
}

func (f *fakePosts) GetScheduledPost(ctx context.Context, postID, gmbID string) (*store.Post, error) {
	if f.post == nil {
		return nil, store.ErrPostNotFound
	}
	return f.post, nil
}

func (f *fakePosts) ListMedia(ctx context.Context, postID, gmbID string) ([]store.MediaAsset, error) {
	return f.media, nil
}

func (f *fakePosts) ReconcilePublishedPost(ctx context.Context, gmbID, postID string, post store.PostRecord, media []store.MediaRecord) ([]store.InsertedMedia, error) {
	if f.reconcileErr != nil {
		return nil, f.reconcileErr
	}
	f.reconciled = true
	f.reconciledGmbID = gmbID
	f.reconciledPost = post
	f.reconciledMedia = media
	return f.inserted, nil
}

type fakeBlobs struct {
	mu       sync.Mutex
	presigns []string
	puts     map[string]string
	deleted  []string

	deleteErr error
}

func (f *fakeBlobs) PresignGet(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presigns = append(f.presigns, key)
	return "https://signed/" + key, nil
}

func (f *fakeBlobs) Put(ctx context.Context, key string, body []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.puts == nil {
		f.puts = make(map[string]string)
	}
	f.puts[key] = contentType
	return nil
}

func (f *fakeBlobs) DeleteAll(ctx context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, keys...)
	return nil
}

type fakePublisher struct {
	result  *gbp.PublishResult
	err     error
	created int
	payload *gbp.LocalPost
}

func (f *fakePublisher) CreateLocalPost(ctx context.Context, accountID, locationID string, payload *gbp.LocalPost, accessToken string) (*gbp.PublishResult, error) {
	f.created++
	f.payload = payload
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakePublisher) FetchMedia(ctx context.Context, url string) ([]byte, string, error) {
	return []byte("media-bytes"), "image/jpeg", nil
}

type fakeNotifier struct {
	err      error
	notified []string
}

func (f *fakeNotifier) Notify(ctx context.Context, userID string, post *store.Post) error {
	if f.err != nil {
		return f.err
	}
	f.notified = append(f.notified, userID)
	return nil
}

// --- Helpers ---

func scheduledPost() *store.Post {
	return &store.Post{
		ID:        "42",
		GmbID:     "loc1",
		State:     store.StateScheduled,
		TopicType: gbp.TopicStandard,
		Summary:   "hello",
	}
}

func validEvent() PublishEvent {
	return PublishEvent{
		AccountID:      "acct-1",
		GmbID:          "loc1",
		OrganizationID: "org-1",
		PostID:         "42",
		UserID:         "u1",
	}
}

func bodyField(t *testing.T, resp Response, field string) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("response body is not valid JSON: %v", err)
	}
	return body[field]
}

// --- Tests ---

func TestRun_Success(t *testing.T) {
	tokens := &fakeTokens{token: "tok"}
	posts := &fakePosts{
		post: scheduledPost(),
		media: []store.MediaAsset{
			{ID: 1, ContentType: "image/jpeg", Description: "one"},
			{ID: 2, ContentType: "image/png"},
		},
		inserted: []store.InsertedMedia{
			{ID: 17, GoogleURL: "https://lh3.example/m1"},
			{ID: 18, GoogleURL: "https://lh3.example/m2"},
		},
	}
	blobs := &fakeBlobs{}
	pub := &fakePublisher{result: &gbp.PublishResult{
		Name:  "accounts/acct-1/locations/loc1/localPosts/new-post",
		State: "LIVE",
		Media: []gbp.ResultMedia{{Name: "media/m1", GoogleURL: "https://lh3.example/m1"}},
	}}
	notif := &fakeNotifier{}

	p := &pipeline{tokens: tokens, posts: posts, blobs: blobs, publisher: pub, notifier: notif}
	resp := p.run(context.Background(), validEvent())

	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d (%s)", resp.StatusCode, resp.Body)
	}
	if got := bodyField(t, resp, "gmbPostName"); got != "accounts/acct-1/locations/loc1/localPosts/new-post" {
		t.Errorf("unexpected gmbPostName: %s", got)
	}

	if !posts.reconciled {
		t.Fatal("reconciliation did not run")
	}
	if posts.reconciledPost.NewID != "new-post" {
		t.Errorf("post id must become the last path segment, got %s", posts.reconciledPost.NewID)
	}

	// Every pre-existing blob is removed, every published body re-stored.
	sort.Strings(blobs.deleted)
	if len(blobs.deleted) != 2 || blobs.deleted[0] != "loc1/1" || blobs.deleted[1] != "loc1/2" {
		t.Errorf("unexpected deleted keys: %v", blobs.deleted)
	}
	if len(blobs.puts) != 2 {
		t.Fatalf("expected 2 stored blobs, got %d", len(blobs.puts))
	}
	for _, key := range []string{"loc1/17", "loc1/18"} {
		if blobs.puts[key] != "image/jpeg" {
			t.Errorf("blob %s not stored with fetched content type: %q", key, blobs.puts[key])
		}
	}

	if len(notif.notified) != 1 || notif.notified[0] != "u1" {
		t.Errorf("expected notification for u1, got %v", notif.notified)
	}

	// The payload media order must match the load order.
	if pub.payload == nil || len(pub.payload.Media) != 2 {
		t.Fatalf("expected payload with 2 media items, got %+v", pub.payload)
	}
	if pub.payload.Media[0].SourceURL != "https://signed/loc1/1" {
		t.Errorf("media order changed: %s", pub.payload.Media[0].SourceURL)
	}
}

func TestRun_IneligiblePerformsNoWrites(t *testing.T) {
	post := scheduledPost()
	post.State = "LIVE"

	tokens := &fakeTokens{token: "tok"}
	posts := &fakePosts{post: post}
	blobs := &fakeBlobs{}
	pub := &fakePublisher{}
	notif := &fakeNotifier{}

	p := &pipeline{tokens: tokens, posts: posts, blobs: blobs, publisher: pub, notifier: notif}
	resp := p.run(context.Background(), validEvent())

	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if got := bodyField(t, resp, "message"); got != "Post is not in SCHEDULED state" {
		t.Errorf("unexpected message: %s", got)
	}

	if pub.created != 0 {
		t.Error("ineligible post must not be published")
	}
	if posts.reconciled {
		t.Error("ineligible post must not be reconciled")
	}
	if len(blobs.deleted) != 0 || len(blobs.puts) != 0 || len(blobs.presigns) != 0 {
		t.Error("ineligible post must cause no blob operations")
	}
	if len(notif.notified) != 0 {
		t.Error("ineligible post must not notify")
	}
}

func TestRun_PublishFailureLeavesPostUntouched(t *testing.T) {
	tokens := &fakeTokens{token: "tok"}
	posts := &fakePosts{post: scheduledPost()}
	blobs := &fakeBlobs{}
	pub := &fakePublisher{err: &gbp.APIError{StatusCode: 500, Message: "backend unavailable"}}

	p := &pipeline{tokens: tokens, posts: posts, blobs: blobs, publisher: pub, notifier: &fakeNotifier{}}
	resp := p.run(context.Background(), validEvent())

	if resp.StatusCode != 500 {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if got := bodyField(t, resp, "message"); got != "Failed to process scheduled post" {
		t.Errorf("unexpected message: %s", got)
	}

	if posts.reconciled {
		t.Error("failed publish must not reconcile")
	}
	if len(blobs.deleted) != 0 || len(blobs.puts) != 0 {
		t.Error("failed publish must not touch blobs")
	}
}

func TestRun_MissingEventFields(t *testing.T) {
	tokens := &fakeTokens{token: "tok"}
	p := &pipeline{tokens: tokens, posts: &fakePosts{}, blobs: &fakeBlobs{}, publisher: &fakePublisher{}}

	for _, event := range []PublishEvent{
		{GmbID: "loc1", OrganizationID: "org", PostID: "42"},
		{AccountID: "a", OrganizationID: "org", PostID: "42"},
		{AccountID: "a", GmbID: "loc1", PostID: "42"},
		{AccountID: "a", GmbID: "loc1", OrganizationID: "org"},
	} {
		resp := p.run(context.Background(), event)
		if resp.StatusCode != 500 {
			t.Errorf("expected 500 for %+v, got %d", event, resp.StatusCode)
		}
	}
	if tokens.calls != 0 {
		t.Error("invalid events must not reach the token exchange")
	}
}

func TestRun_CredentialNotFound(t *testing.T) {
	tokens := &fakeTokens{err: fmt.Errorf("access token: %w", store.ErrCredentialNotFound)}
	p := &pipeline{tokens: tokens, posts: &fakePosts{}, blobs: &fakeBlobs{}, publisher: &fakePublisher{}}

	resp := p.run(context.Background(), validEvent())
	if resp.StatusCode != 500 {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func TestRun_ReconcileFailure(t *testing.T) {
	posts := &fakePosts{post: scheduledPost(), reconcileErr: errors.New("commit: conflict")}
	blobs := &fakeBlobs{}
	pub := &fakePublisher{result: &gbp.PublishResult{Name: "localPosts/x", State: "LIVE"}}

	p := &pipeline{tokens: &fakeTokens{token: "tok"}, posts: posts, blobs: blobs, publisher: pub, notifier: &fakeNotifier{}}
	resp := p.run(context.Background(), validEvent())

	if resp.StatusCode != 500 {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if len(blobs.deleted) != 0 || len(blobs.puts) != 0 {
		t.Error("blobs must stay untouched when the transaction fails")
	}
}

func TestRun_BlobCleanupFailureSurfaces(t *testing.T) {
	posts := &fakePosts{
		post:  scheduledPost(),
		media: []store.MediaAsset{{ID: 1, ContentType: "image/jpeg"}},
	}
	blobs := &fakeBlobs{deleteErr: errors.New("delete blob loc1/1: access denied")}
	pub := &fakePublisher{result: &gbp.PublishResult{Name: "localPosts/x", State: "LIVE"}}

	p := &pipeline{tokens: &fakeTokens{token: "tok"}, posts: posts, blobs: blobs, publisher: pub, notifier: &fakeNotifier{}}
	resp := p.run(context.Background(), validEvent())

	if resp.StatusCode != 500 {
		t.Fatalf("orphaned blobs must surface as a failure, got %d", resp.StatusCode)
	}
}

func TestRun_NotificationFailureDoesNotFailPublish(t *testing.T) {
	posts := &fakePosts{post: scheduledPost()}
	pub := &fakePublisher{result: &gbp.PublishResult{Name: "localPosts/y", State: "LIVE"}}
	notif := &fakeNotifier{err: store.ErrUserNotFound}

	p := &pipeline{tokens: &fakeTokens{token: "tok"}, posts: posts, blobs: &fakeBlobs{}, publisher: pub, notifier: notif}
	resp := p.run(context.Background(), validEvent())

	if resp.StatusCode != 200 {
		t.Errorf("notification failure must not undo publish success, got %d", resp.StatusCode)
	}
}
