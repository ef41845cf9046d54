package gbp

import (
	"encoding/json"
	"strings"

	"github.com/fpang/gmb-post-worker/internal/store"
)

// PublishResult is the platform's canonical representation of a created
// local post, including the media descriptors it attached. The response is
// authoritative: reconciliation mirrors exactly what it contains.
type PublishResult struct {
	Name         string              `json:"name"`
	LanguageCode string              `json:"languageCode"`
	Summary      string              `json:"summary"`
	CallToAction *ResultCallToAction `json:"callToAction,omitempty"`
	CreateTime   string              `json:"createTime"`
	UpdateTime   string              `json:"updateTime"`
	Event        *LocalPostEvent     `json:"event,omitempty"`
	State        string              `json:"state"`
	SearchURL    string              `json:"searchUrl"`
	TopicType    string              `json:"topicType"`
	AlertType    string              `json:"alertType,omitempty"`
	Offer        *LocalPostOffer     `json:"offer,omitempty"`
	Media        []ResultMedia       `json:"media,omitempty"`
}

// ResultCallToAction is the call-to-action block as returned by the API,
// which names the type field differently from the creation payload.
type ResultCallToAction struct {
	ActionType string `json:"actionType"`
	URL        string `json:"url"`
}

// ResultMedia is one media descriptor the platform attached to the post.
// GoogleURL points at the platform-hosted copy to fetch and re-store.
type ResultMedia struct {
	Name                string               `json:"name"`
	MediaFormat         string               `json:"mediaFormat"`
	LocationAssociation *LocationAssociation `json:"locationAssociation,omitempty"`
	GoogleURL           string               `json:"googleUrl"`
	ThumbnailURL        string               `json:"thumbnailUrl"`
	CreateTime          string               `json:"createTime"`
	Dimensions          *Dimensions          `json:"dimensions,omitempty"`
	Insights            *MediaInsights       `json:"insights,omitempty"`
	Attribution         json.RawMessage      `json:"attribution,omitempty"`
	Description         string               `json:"description,omitempty"`
	SourceURL           string               `json:"sourceUrl,omitempty"`
	DataRef             *MediaDataRef        `json:"dataRef,omitempty"`
}

// LocationAssociation ties a media item to a location category or price
// list item.
type LocationAssociation struct {
	Category        string `json:"category,omitempty"`
	PriceListItemID string `json:"priceListItemId,omitempty"`
}

// Dimensions are the pixel dimensions of a media item.
type Dimensions struct {
	WidthPixels  int64 `json:"widthPixels"`
	HeightPixels int64 `json:"heightPixels"`
}

// MediaInsights carries platform view statistics for a media item.
type MediaInsights struct {
	ViewCount int64 `json:"viewCount,string,omitempty"`
}

// MediaDataRef is the platform's stable reference to the media bytes.
type MediaDataRef struct {
	ResourceName string `json:"resourceName"`
}

// PostID returns the platform-assigned post id, the final segment of the
// slash-delimited resource name.
func (r *PublishResult) PostID() string {
	idx := strings.LastIndex(r.Name, "/")
	return r.Name[idx+1:]
}

// PostRecord maps the response onto the values written to the post row.
// Fields absent from the response come through as empty strings, which the
// store writes as NULL.
func (r *PublishResult) PostRecord() store.PostRecord {
	rec := store.PostRecord{
		NewID:        r.PostID(),
		LanguageCode: r.LanguageCode,
		Summary:      r.Summary,
		CreateTime:   r.CreateTime,
		UpdateTime:   r.UpdateTime,
		State:        r.State,
		SearchURL:    r.SearchURL,
		TopicType:    r.TopicType,
		AlertType:    r.AlertType,
	}
	if r.CallToAction != nil {
		rec.CallToActionType = r.CallToAction.ActionType
		rec.CallToActionURL = r.CallToAction.URL
	}
	if r.Event != nil {
		rec.EventTitle = r.Event.Title
		rec.EventSchedule = r.Event.Schedule
	}
	if r.Offer != nil {
		rec.OfferCouponCode = r.Offer.CouponCode
		rec.OfferRedeemOnlineURL = r.Offer.RedeemOnlineURL
		rec.OfferTermsConditions = r.Offer.TermsConditions
	}
	return rec
}

// MediaRecords maps the response media descriptors onto media row values,
// preserving the response order.
func (r *PublishResult) MediaRecords() []store.MediaRecord {
	records := make([]store.MediaRecord, 0, len(r.Media))
	for _, m := range r.Media {
		rec := store.MediaRecord{
			Name:         m.Name,
			MediaFormat:  m.MediaFormat,
			GoogleURL:    m.GoogleURL,
			ThumbnailURL: m.ThumbnailURL,
			CreateTime:   m.CreateTime,
			Description:  m.Description,
			SourceURL:    m.SourceURL,
		}
		if m.LocationAssociation != nil {
			rec.Category = m.LocationAssociation.Category
			rec.PriceListItemID = m.LocationAssociation.PriceListItemID
		}
		if m.Dimensions != nil {
			rec.WidthPx = m.Dimensions.WidthPixels
			rec.HeightPx = m.Dimensions.HeightPixels
		}
		if m.Insights != nil {
			rec.ViewCount = m.Insights.ViewCount
		}
		if len(m.Attribution) > 0 {
			rec.AttributionJSON = string(m.Attribution)
		}
		if m.DataRef != nil {
			rec.DataRefResource = m.DataRef.ResourceName
		}
		records = append(records, rec)
	}
	return records
}
