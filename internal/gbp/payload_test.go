package gbp

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/fpang/gmb-post-worker/internal/store"
)

func TestBuildLocalPost_StandardNoMedia(t *testing.T) {
	post := &store.Post{
		ID:        "42",
		GmbID:     "loc1",
		State:     store.StateScheduled,
		TopicType: TopicStandard,
		Summary:   "Grand opening this weekend",
	}

	lp, err := BuildLocalPost(post, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lp.PostType != "STANDARD" {
		t.Errorf("expected postType STANDARD, got %s", lp.PostType)
	}
	if lp.LanguageCode != "en-US" {
		t.Errorf("expected default languageCode en-US, got %s", lp.LanguageCode)
	}
	if lp.Summary != "Grand opening this weekend" {
		t.Errorf("unexpected summary: %s", lp.Summary)
	}
	if lp.CallToAction != nil || lp.Event != nil || lp.Offer != nil || lp.AlertType != "" || lp.Media != nil {
		t.Errorf("expected no optional blocks, got %+v", lp)
	}

	// The wire form must carry only the three required fields.
	raw, _ := json.Marshal(lp)
	for _, field := range []string{"callToAction", "event", "offer", "alertType", "media"} {
		if strings.Contains(string(raw), field) {
			t.Errorf("serialized payload unexpectedly contains %q: %s", field, raw)
		}
	}
}

func TestBuildLocalPost_OfferSuppressesCallToAction(t *testing.T) {
	post := &store.Post{
		ID:               "7",
		TopicType:        TopicOffer,
		CallToActionType: "LEARN_MORE",
		CallToActionURL:  "https://example.com",
		EventTitle:       "Summer sale",
		EventSchedule:    "2026-06-01/2026-06-30",
	}

	lp, err := BuildLocalPost(post, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lp.CallToAction != nil {
		t.Errorf("OFFER payload must never include a call to action, got %+v", lp.CallToAction)
	}
	if lp.Offer == nil {
		t.Fatal("OFFER payload must include an offer block")
	}
	if lp.Offer.CouponCode != "" || lp.Offer.RedeemOnlineURL != "" || lp.Offer.TermsConditions != "" {
		t.Errorf("absent offer fields must default to empty strings, got %+v", lp.Offer)
	}
	if lp.Event == nil || lp.Event.Title != "Summer sale" {
		t.Errorf("OFFER payload must include the event block, got %+v", lp.Event)
	}

	// All three offer sub-fields must be present on the wire even when empty.
	raw, _ := json.Marshal(lp)
	for _, field := range []string{"couponCode", "redeemOnlineUrl", "termsConditions"} {
		if !strings.Contains(string(raw), field) {
			t.Errorf("serialized offer block missing %q: %s", field, raw)
		}
	}
}

func TestBuildLocalPost_EventWithCallToAction(t *testing.T) {
	post := &store.Post{
		ID:               "9",
		TopicType:        TopicEvent,
		LanguageCode:     "de-DE",
		CallToActionType: "BOOK",
		EventTitle:       "Wine tasting",
		EventSchedule:    "2026-10-01",
	}

	lp, err := BuildLocalPost(post, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lp.LanguageCode != "de-DE" {
		t.Errorf("explicit languageCode must be kept, got %s", lp.LanguageCode)
	}
	if lp.CallToAction == nil || lp.CallToAction.Type != "BOOK" {
		t.Errorf("expected call to action, got %+v", lp.CallToAction)
	}
	if lp.CallToAction.URL != "" {
		t.Errorf("absent CTA url must default to empty string, got %s", lp.CallToAction.URL)
	}
	if lp.Event == nil || lp.Event.Schedule != "2026-10-01" {
		t.Errorf("expected event block, got %+v", lp.Event)
	}
	if lp.Offer != nil {
		t.Errorf("EVENT payload must not include an offer block")
	}
}

func TestBuildLocalPost_Alert(t *testing.T) {
	post := &store.Post{ID: "3", TopicType: TopicAlert, AlertType: "COVID_19"}

	lp, err := BuildLocalPost(post, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lp.AlertType != "COVID_19" {
		t.Errorf("expected alertType COVID_19, got %s", lp.AlertType)
	}
	if lp.Event != nil || lp.Offer != nil {
		t.Errorf("ALERT payload must not include event or offer blocks")
	}
}

func TestBuildLocalPost_MediaOrderPreserved(t *testing.T) {
	post := &store.Post{ID: "5", TopicType: TopicStandard}
	media := []MediaItem{
		{SourceURL: "https://signed/1", ContentType: "image/jpeg", Description: "first"},
		{SourceURL: "https://signed/2", ContentType: "image/png", Description: ""},
		{SourceURL: "https://signed/3", ContentType: "video/mp4", Description: "third"},
	}

	lp, err := BuildLocalPost(post, media)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lp.Media) != 3 {
		t.Fatalf("expected 3 media items, got %d", len(lp.Media))
	}
	for i, item := range lp.Media {
		if item.SourceURL != media[i].SourceURL {
			t.Errorf("media order changed at %d: got %s", i, item.SourceURL)
		}
	}
}

func TestBuildLocalPost_RejectsBadTopicType(t *testing.T) {
	if _, err := BuildLocalPost(&store.Post{ID: "1"}, nil); err == nil {
		t.Error("expected error for missing topic type")
	}
	if _, err := BuildLocalPost(&store.Post{ID: "1", TopicType: "CAROUSEL"}, nil); err == nil {
		t.Error("expected error for unknown topic type")
	}
}
