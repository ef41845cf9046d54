package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata"
	rdsdatatypes "github.com/aws/aws-sdk-go-v2/service/rdsdata/types"
	"github.com/rs/zerolog/log"
)

// dataAPI is the subset of the RDS Data API client used by this package.
// *rdsdata.Client satisfies it; tests substitute a fake.
type dataAPI interface {
	ExecuteStatement(ctx context.Context, params *rdsdata.ExecuteStatementInput, optFns ...func(*rdsdata.Options)) (*rdsdata.ExecuteStatementOutput, error)
	BeginTransaction(ctx context.Context, params *rdsdata.BeginTransactionInput, optFns ...func(*rdsdata.Options)) (*rdsdata.BeginTransactionOutput, error)
	CommitTransaction(ctx context.Context, params *rdsdata.CommitTransactionInput, optFns ...func(*rdsdata.Options)) (*rdsdata.CommitTransactionOutput, error)
	RollbackTransaction(ctx context.Context, params *rdsdata.RollbackTransactionInput, optFns ...func(*rdsdata.Options)) (*rdsdata.RollbackTransactionOutput, error)
}

// DataAPIClient executes statements against an Aurora cluster through the
// RDS Data API.
type DataAPIClient struct {
	client     dataAPI
	clusterARN string
	secretARN  string
	database   string
}

// NewDataAPIClient creates a repository bound to one cluster and database.
func NewDataAPIClient(client dataAPI, clusterARN, secretARN, database string) *DataAPIClient {
	return &DataAPIClient{
		client:     client,
		clusterARN: clusterARN,
		secretARN:  secretARN,
		database:   database,
	}
}

const postColumns = `id, gmb_id, language_code, summary, call_to_action_type, call_to_action_url,
	event_title, event_schedule, state, search_url, topic_type, alert_type,
	offer_coupon_code, offer_redeem_online_url, offer_terms_conditions,
	create_time, update_time, scheduled_pub_time`

// GetScheduledPost loads the post row for (postID, gmbID). It does not
// check the lifecycle state; eligibility is the caller's decision.
func (c *DataAPIClient) GetScheduledPost(ctx context.Context, postID, gmbID string) (*Post, error) {
	sql := `SELECT ` + postColumns + ` FROM gmb_posts WHERE id = :id AND gmb_id = :gmb_id`
	out, err := c.query(ctx, sql, []rdsdatatypes.SqlParameter{
		strParam("id", postID),
		strParam("gmb_id", gmbID),
	})
	if err != nil {
		return nil, fmt.Errorf("GetScheduledPost: %w", err)
	}
	if len(out.Records) == 0 {
		return nil, fmt.Errorf("GetScheduledPost %s: %w", postID, ErrPostNotFound)
	}

	rec := out.Records[0]
	p := &Post{
		ID:                   strField(rec, 0),
		GmbID:                strField(rec, 1),
		LanguageCode:         strField(rec, 2),
		Summary:              strField(rec, 3),
		CallToActionType:     strField(rec, 4),
		CallToActionURL:      strField(rec, 5),
		EventTitle:           strField(rec, 6),
		EventSchedule:        strField(rec, 7),
		State:                strField(rec, 8),
		SearchURL:            strField(rec, 9),
		TopicType:            strField(rec, 10),
		AlertType:            strField(rec, 11),
		OfferCouponCode:      strField(rec, 12),
		OfferRedeemOnlineURL: strField(rec, 13),
		OfferTermsConditions: strField(rec, 14),
		CreateTime:           strField(rec, 15),
		UpdateTime:           strField(rec, 16),
		ScheduledPubTime:     strField(rec, 17),
	}
	return p, nil
}

// ListMedia returns the media rows attached to a post, empty when none.
func (c *DataAPIClient) ListMedia(ctx context.Context, postID, gmbID string) ([]MediaAsset, error) {
	sql := `SELECT id, gmb_id, post_id, file_name, content_type, description
		FROM gmb_media WHERE post_id = :post_id AND gmb_id = :gmb_id ORDER BY id`
	out, err := c.query(ctx, sql, []rdsdatatypes.SqlParameter{
		strParam("post_id", postID),
		strParam("gmb_id", gmbID),
	})
	if err != nil {
		return nil, fmt.Errorf("ListMedia: %w", err)
	}

	media := make([]MediaAsset, 0, len(out.Records))
	for _, rec := range out.Records {
		media = append(media, MediaAsset{
			ID:          longField(rec, 0),
			GmbID:       strField(rec, 1),
			PostID:      strField(rec, 2),
			FileName:    strField(rec, 3),
			ContentType: strField(rec, 4),
			Description: strField(rec, 5),
		})
	}
	return media, nil
}

// GetUser loads a user row for the notification lookup.
func (c *DataAPIClient) GetUser(ctx context.Context, userID string) (*User, error) {
	sql := `SELECT id, email, name FROM users WHERE id = :id`
	out, err := c.query(ctx, sql, []rdsdatatypes.SqlParameter{strParam("id", userID)})
	if err != nil {
		return nil, fmt.Errorf("GetUser: %w", err)
	}
	if len(out.Records) == 0 {
		return nil, fmt.Errorf("GetUser %s: %w", userID, ErrUserNotFound)
	}
	rec := out.Records[0]
	return &User{ID: strField(rec, 0), Email: strField(rec, 1), Name: strField(rec, 2)}, nil
}

// GetRefreshToken returns the stored (still encrypted) refresh token for
// the (organization, account) pair.
func (c *DataAPIClient) GetRefreshToken(ctx context.Context, orgID, accountID string) (string, error) {
	sql := `SELECT refresh_token FROM access_credentials
		WHERE organization_id = :organization_id AND account_id = :account_id`
	out, err := c.query(ctx, sql, []rdsdatatypes.SqlParameter{
		strParam("organization_id", orgID),
		strParam("account_id", accountID),
	})
	if err != nil {
		return "", fmt.Errorf("GetRefreshToken: %w", err)
	}
	if len(out.Records) == 0 {
		return "", fmt.Errorf("GetRefreshToken %s/%s: %w", orgID, accountID, ErrCredentialNotFound)
	}
	return strField(out.Records[0], 0), nil
}

// ReconcilePublishedPost rewrites the local rows to mirror the platform
// response inside a single Data API transaction: the post row is updated in
// place (its id becomes the platform-assigned id, absent response fields are
// cleared, the scheduled publication time is reset), every old media row is
// deleted, and one row is inserted per published media descriptor. Returns
// the inserted row ids paired with the remote URLs their blob bodies must be
// fetched from.
//
// Blob-store effects are intentionally outside this transaction; the caller
// performs them after commit so that the row of record is never stale.
func (c *DataAPIClient) ReconcilePublishedPost(ctx context.Context, gmbID, postID string, post PostRecord, media []MediaRecord) ([]InsertedMedia, error) {
	begin, err := c.client.BeginTransaction(ctx, &rdsdata.BeginTransactionInput{
		ResourceArn: aws.String(c.clusterARN),
		SecretArn:   aws.String(c.secretARN),
		Database:    aws.String(c.database),
	})
	if err != nil {
		return nil, fmt.Errorf("ReconcilePublishedPost: begin: %w", err)
	}
	txID := begin.TransactionId

	inserted, err := c.reconcileInTx(ctx, txID, gmbID, postID, post, media)
	if err != nil {
		if _, rbErr := c.client.RollbackTransaction(ctx, &rdsdata.RollbackTransactionInput{
			ResourceArn:   aws.String(c.clusterARN),
			SecretArn:     aws.String(c.secretARN),
			TransactionId: txID,
		}); rbErr != nil {
			log.Error().Err(rbErr).Str("postId", postID).Msg("Rollback failed after reconcile error")
		}
		return nil, fmt.Errorf("ReconcilePublishedPost: %w", err)
	}

	if _, err := c.client.CommitTransaction(ctx, &rdsdata.CommitTransactionInput{
		ResourceArn:   aws.String(c.clusterARN),
		SecretArn:     aws.String(c.secretARN),
		TransactionId: txID,
	}); err != nil {
		return nil, fmt.Errorf("ReconcilePublishedPost: commit: %w", err)
	}

	log.Info().Str("gmbId", gmbID).Str("oldPostId", postID).Str("newPostId", post.NewID).
		Int("mediaRows", len(inserted)).Msg("Post reconciled to platform response")
	return inserted, nil
}

func (c *DataAPIClient) reconcileInTx(ctx context.Context, txID *string, gmbID, postID string, post PostRecord, media []MediaRecord) ([]InsertedMedia, error) {
	updateSQL := `UPDATE gmb_posts SET
			id = :new_id,
			language_code = :language_code,
			summary = :summary,
			call_to_action_type = :call_to_action_type,
			call_to_action_url = :call_to_action_url,
			create_time = :create_time,
			update_time = :update_time,
			event_title = :event_title,
			event_schedule = :event_schedule,
			state = :state,
			search_url = :search_url,
			topic_type = :topic_type,
			alert_type = :alert_type,
			offer_coupon_code = :offer_coupon_code,
			offer_redeem_online_url = :offer_redeem_online_url,
			offer_terms_conditions = :offer_terms_conditions,
			scheduled_pub_time = NULL
		WHERE id = :id AND gmb_id = :gmb_id`
	updateParams := []rdsdatatypes.SqlParameter{
		strParam("new_id", post.NewID),
		nullableStrParam("language_code", post.LanguageCode),
		nullableStrParam("summary", post.Summary),
		nullableStrParam("call_to_action_type", post.CallToActionType),
		nullableStrParam("call_to_action_url", post.CallToActionURL),
		nullableStrParam("create_time", post.CreateTime),
		nullableStrParam("update_time", post.UpdateTime),
		nullableStrParam("event_title", post.EventTitle),
		nullableStrParam("event_schedule", post.EventSchedule),
		nullableStrParam("state", post.State),
		nullableStrParam("search_url", post.SearchURL),
		nullableStrParam("topic_type", post.TopicType),
		nullableStrParam("alert_type", post.AlertType),
		nullableStrParam("offer_coupon_code", post.OfferCouponCode),
		nullableStrParam("offer_redeem_online_url", post.OfferRedeemOnlineURL),
		nullableStrParam("offer_terms_conditions", post.OfferTermsConditions),
		strParam("id", postID),
		strParam("gmb_id", gmbID),
	}
	if _, err := c.execInTx(ctx, txID, updateSQL, updateParams); err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}

	deleteSQL := `DELETE FROM gmb_media WHERE gmb_id = :gmb_id AND post_id = :post_id`
	if _, err := c.execInTx(ctx, txID, deleteSQL, []rdsdatatypes.SqlParameter{
		strParam("gmb_id", gmbID),
		strParam("post_id", postID),
	}); err != nil {
		return nil, fmt.Errorf("delete old media: %w", err)
	}

	insertSQL := `INSERT INTO gmb_media
			(gmb_id, post_id, name, media_format, category, price_list_item_id,
			 google_url, thumbnail_url, create_time, width_px, height_px,
			 view_count, attribution_json, description, source_url, data_ref_resource)
		VALUES
			(:gmb_id, :post_id, :name, :media_format, :category, :price_list_item_id,
			 :google_url, :thumbnail_url, :create_time, :width_px, :height_px,
			 :view_count, :attribution_json::jsonb, :description, :source_url, :data_ref_resource)
		RETURNING id, google_url`

	inserted := make([]InsertedMedia, 0, len(media))
	for _, m := range media {
		params := []rdsdatatypes.SqlParameter{
			strParam("gmb_id", gmbID),
			strParam("post_id", post.NewID),
			nullableStrParam("name", m.Name),
			nullableStrParam("media_format", m.MediaFormat),
			nullableStrParam("category", m.Category),
			nullableStrParam("price_list_item_id", m.PriceListItemID),
			nullableStrParam("google_url", m.GoogleURL),
			nullableStrParam("thumbnail_url", m.ThumbnailURL),
			nullableStrParam("create_time", m.CreateTime),
			nullableLongParam("width_px", m.WidthPx),
			nullableLongParam("height_px", m.HeightPx),
			nullableLongParam("view_count", m.ViewCount),
			nullableStrParam("attribution_json", m.AttributionJSON),
			nullableStrParam("description", m.Description),
			nullableStrParam("source_url", m.SourceURL),
			nullableStrParam("data_ref_resource", m.DataRefResource),
		}
		out, err := c.execInTx(ctx, txID, insertSQL, params)
		if err != nil {
			return nil, fmt.Errorf("insert media: %w", err)
		}
		if len(out.Records) == 0 {
			return nil, fmt.Errorf("insert media: no row returned")
		}
		inserted = append(inserted, InsertedMedia{
			ID:        longField(out.Records[0], 0),
			GoogleURL: strField(out.Records[0], 1),
		})
	}
	return inserted, nil
}

func (c *DataAPIClient) query(ctx context.Context, sql string, params []rdsdatatypes.SqlParameter) (*rdsdata.ExecuteStatementOutput, error) {
	return c.client.ExecuteStatement(ctx, &rdsdata.ExecuteStatementInput{
		ResourceArn: aws.String(c.clusterARN),
		SecretArn:   aws.String(c.secretARN),
		Database:    aws.String(c.database),
		Sql:         aws.String(sql),
		Parameters:  params,
	})
}

func (c *DataAPIClient) execInTx(ctx context.Context, txID *string, sql string, params []rdsdatatypes.SqlParameter) (*rdsdata.ExecuteStatementOutput, error) {
	return c.client.ExecuteStatement(ctx, &rdsdata.ExecuteStatementInput{
		ResourceArn:   aws.String(c.clusterARN),
		SecretArn:     aws.String(c.secretARN),
		Database:      aws.String(c.database),
		Sql:           aws.String(sql),
		Parameters:    params,
		TransactionId: txID,
	})
}

// --- Parameter and field helpers ---

func strParam(name, value string) rdsdatatypes.SqlParameter {
	return rdsdatatypes.SqlParameter{
		Name:  aws.String(name),
		Value: &rdsdatatypes.FieldMemberStringValue{Value: value},
	}
}

// nullableStrParam writes empty strings as SQL NULL so absent response
// fields clear the column instead of leaving stale values.
func nullableStrParam(name, value string) rdsdatatypes.SqlParameter {
	if value == "" {
		return rdsdatatypes.SqlParameter{
			Name:  aws.String(name),
			Value: &rdsdatatypes.FieldMemberIsNull{Value: true},
		}
	}
	return strParam(name, value)
}

func nullableLongParam(name string, value int64) rdsdatatypes.SqlParameter {
	if value == 0 {
		return rdsdatatypes.SqlParameter{
			Name:  aws.String(name),
			Value: &rdsdatatypes.FieldMemberIsNull{Value: true},
		}
	}
	return rdsdatatypes.SqlParameter{
		Name:  aws.String(name),
		Value: &rdsdatatypes.FieldMemberLongValue{Value: value},
	}
}

func strField(rec []rdsdatatypes.Field, i int) string {
	if i >= len(rec) {
		return ""
	}
	if v, ok := rec[i].(*rdsdatatypes.FieldMemberStringValue); ok {
		return v.Value
	}
	return ""
}

func longField(rec []rdsdatatypes.Field, i int) int64 {
	if i >= len(rec) {
		return 0
	}
	if v, ok := rec[i].(*rdsdatatypes.FieldMemberLongValue); ok {
		return v.Value
	}
	return 0
}
