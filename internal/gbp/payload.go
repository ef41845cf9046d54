// Package gbp provides a client for the Google Business Profile local
// posts API and the projection of a scheduled post row into the API's
// creation payload.
//
// A local post carries a topic-type discriminator (STANDARD, EVENT, OFFER,
// ALERT) that decides which optional blocks are present. The projection is
// decided once in BuildLocalPost rather than scattered through the caller.
package gbp

import (
	"fmt"

	"github.com/fpang/gmb-post-worker/internal/store"
)

// Topic types accepted by the local posts API.
const (
	TopicStandard = "STANDARD"
	TopicEvent    = "EVENT"
	TopicOffer    = "OFFER"
	TopicAlert    = "ALERT"
)

// defaultLanguageCode is used when the post row has no language set.
const defaultLanguageCode = "en-US"

// LocalPost is the creation request payload. Optional blocks are pointers
// so absent means omitted on the wire, not sent empty.
type LocalPost struct {
	PostType     string          `json:"postType"`
	LanguageCode string          `json:"languageCode"`
	Summary      string          `json:"summary"`
	CallToAction *CallToAction   `json:"callToAction,omitempty"`
	Event        *LocalPostEvent `json:"event,omitempty"`
	AlertType    string          `json:"alertType,omitempty"`
	Offer        *LocalPostOffer `json:"offer,omitempty"`
	Media        []MediaItem     `json:"media,omitempty"`
}

// CallToAction is the clickable action block, valid for every topic type
// except OFFER.
type CallToAction struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// LocalPostEvent is the event window block, required for EVENT and OFFER
// posts.
type LocalPostEvent struct {
	Title    string `json:"title"`
	Schedule string `json:"schedule"`
}

// LocalPostOffer is the offer terms block, only present for OFFER posts.
// The fields are always sent, defaulted to empty strings when the source
// row has none.
type LocalPostOffer struct {
	CouponCode      string `json:"couponCode"`
	RedeemOnlineURL string `json:"redeemOnlineUrl"`
	TermsConditions string `json:"termsConditions"`
}

// MediaItem references one media blob via a time-limited source URL the
// platform fetches during creation.
type MediaItem struct {
	SourceURL   string `json:"sourceUrl"`
	ContentType string `json:"contentType"`
	Description string `json:"description"`
}

// BuildLocalPost projects a post row plus its linked media into the
// creation payload. It is a pure function: no side effects, and its only
// failure mode is a malformed source post.
func BuildLocalPost(post *store.Post, media []MediaItem) (*LocalPost, error) {
	switch post.TopicType {
	case TopicStandard, TopicEvent, TopicOffer, TopicAlert:
	case "":
		return nil, fmt.Errorf("build local post %s: missing topic type", post.ID)
	default:
		return nil, fmt.Errorf("build local post %s: unknown topic type %q", post.ID, post.TopicType)
	}

	lp := &LocalPost{
		PostType:     post.TopicType,
		LanguageCode: post.LanguageCode,
		Summary:      post.Summary,
	}
	if lp.LanguageCode == "" {
		lp.LanguageCode = defaultLanguageCode
	}

	// Offers carry their redemption link inside the offer block; a
	// call-to-action is invalid there.
	if post.TopicType != TopicOffer && post.CallToActionType != "" {
		lp.CallToAction = &CallToAction{
			Type: post.CallToActionType,
			URL:  post.CallToActionURL,
		}
	}

	if post.TopicType == TopicEvent || post.TopicType == TopicOffer {
		lp.Event = &LocalPostEvent{
			Title:    post.EventTitle,
			Schedule: post.EventSchedule,
		}
	}

	if post.TopicType == TopicAlert {
		lp.AlertType = post.AlertType
	}

	if post.TopicType == TopicOffer {
		lp.Offer = &LocalPostOffer{
			CouponCode:      post.OfferCouponCode,
			RedeemOnlineURL: post.OfferRedeemOnlineURL,
			TermsConditions: post.OfferTermsConditions,
		}
	}

	if len(media) > 0 {
		lp.Media = media
	}

	return lp, nil
}
