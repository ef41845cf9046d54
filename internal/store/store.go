// Package store provides the Aurora PostgreSQL persistence layer for
// scheduled Google Business Profile posts, accessed through the RDS Data
// API. Lambdas talk to the cluster ARN directly instead of holding
// connection pools across invocations.
//
// The package owns three concerns: reading the scheduled post and its
// media rows, loading users and stored OAuth credentials, and the
// post-publish reconciliation transaction that rewrites the local rows to
// mirror the platform's authoritative response.
package store

import "errors"

// Lifecycle states for a post row. A post is only publishable while it is
// still SCHEDULED; this pipeline is the sole writer that moves it out of
// that state.
const (
	StateScheduled = "SCHEDULED"
)

var (
	// ErrPostNotFound indicates no post row matches (id, gmb_id).
	ErrPostNotFound = errors.New("post not found")

	// ErrUserNotFound indicates no user row matches the given id.
	ErrUserNotFound = errors.New("user not found")

	// ErrCredentialNotFound indicates no stored refresh token exists for
	// the (organization, account) pair.
	ErrCredentialNotFound = errors.New("credential not found")
)

// Post is a row of gmb_posts. Optional columns are empty strings when NULL;
// the topic_type discriminator decides which of the optional groups
// (call-to-action, event, offer, alert) are meaningful.
type Post struct {
	ID                   string
	GmbID                string
	LanguageCode         string
	Summary              string
	CallToActionType     string
	CallToActionURL      string
	EventTitle           string
	EventSchedule        string
	State                string
	SearchURL            string
	TopicType            string
	AlertType            string
	OfferCouponCode      string
	OfferRedeemOnlineURL string
	OfferTermsConditions string
	CreateTime           string
	UpdateTime           string
	ScheduledPubTime     string
}

// MediaAsset is a row of gmb_media. Before publish only ID, ContentType,
// FileName and Description are populated; after publish the row carries the
// platform-assigned metadata. Each row maps 1:1 to a blob keyed
// {gmb_id}/{id}.
type MediaAsset struct {
	ID              int64
	GmbID           string
	PostID          string
	FileName        string
	ContentType     string
	Description     string
	Name            string
	MediaFormat     string
	GoogleURL       string
	ThumbnailURL    string
	CreateTime      string
	WidthPx         int64
	HeightPx        int64
	ViewCount       int64
	AttributionJSON string
	SourceURL       string
	DataRefResource string
}

// User is a row of users, looked up for the post-publish notification.
type User struct {
	ID    string
	Email string
	Name  string
}

// PostRecord holds the publish-derived values written to the post row
// during reconciliation. Empty string fields are written as SQL NULL so
// that anything absent from the platform response is cleared rather than
// left stale.
type PostRecord struct {
	NewID                string
	LanguageCode         string
	Summary              string
	CallToActionType     string
	CallToActionURL      string
	EventTitle           string
	EventSchedule        string
	State                string
	SearchURL            string
	TopicType            string
	AlertType            string
	OfferCouponCode      string
	OfferRedeemOnlineURL string
	OfferTermsConditions string
	CreateTime           string
	UpdateTime           string
}

// MediaRecord holds the values for one newly published media row. Zero
// numeric fields and empty strings are written as SQL NULL.
type MediaRecord struct {
	Name            string
	MediaFormat     string
	Category        string
	PriceListItemID string
	GoogleURL       string
	ThumbnailURL    string
	CreateTime      string
	WidthPx         int64
	HeightPx        int64
	ViewCount       int64
	AttributionJSON string
	Description     string
	SourceURL       string
	DataRefResource string
}

// InsertedMedia identifies a media row created during reconciliation,
// paired with the remote URL its blob body must be fetched from.
type InsertedMedia struct {
	ID        int64
	GoogleURL string
}
