// Package main is the Lambda entry point for the scheduled post publisher.
//
// The worker is invoked once per scheduled Google Business Profile post
// that has come due. It exchanges the stored refresh token for an access
// token, builds the local post payload with presigned media links, calls
// the creation API, reconciles the local rows and blobs to the platform's
// response, and sends a best-effort notification to the post owner.
package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gmb-post-worker/internal/gbp"
	"github.com/fpang/gmb-post-worker/internal/googleauth"
	"github.com/fpang/gmb-post-worker/internal/lambdaboot"
	"github.com/fpang/gmb-post-worker/internal/logging"
	"github.com/fpang/gmb-post-worker/internal/notify"
	"github.com/fpang/gmb-post-worker/internal/s3util"
)

var coldStart = true

var pipe *pipeline

func init() {
	initStart := time.Now()
	logging.Init()

	aws := lambdaboot.InitAWS()
	s3s := lambdaboot.InitS3(aws.Config, "MEDIA_BUCKET_NAME")
	posts := lambdaboot.InitPostStore(aws.Config)
	creds := lambdaboot.LoadGoogleOAuthCreds(aws.SSM)
	cipherKey := lambdaboot.LoadTokenCipherKey(aws.SSM)
	snsClient, topicARN := lambdaboot.InitSNS(aws.Config)

	presignTTL := s3util.DefaultPresignTTL
	if v := os.Getenv("PRESIGN_TTL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			presignTTL = time.Duration(secs) * time.Second
		} else {
			log.Warn().Str("value", v).Msg("Ignoring invalid PRESIGN_TTL_SECONDS")
		}
	}

	pipe = &pipeline{
		tokens:    googleauth.NewProvider(creds.ClientID, creds.ClientSecret, posts, cipherKey),
		posts:     posts,
		blobs:     s3util.NewBlobStore(s3s.Client, s3s.Presigner, s3s.Bucket, presignTTL),
		publisher: gbp.NewClient(),
	}
	if topicARN != "" {
		pipe.notifier = notify.NewNotifier(snsClient, posts, topicARN)
	}

	lambdaboot.StartupLog("publish-post-lambda", initStart).
		S3Bucket("mediaBucket", s3s.Bucket).
		Database("cluster", os.Getenv("DB_CLUSTER_ARN")).
		Database("name", os.Getenv("DB_NAME")).
		SSMParam("googleClientId", logging.EnvOrDefault("SSM_GOOGLE_CLIENT_ID_PARAM", "/gmb-post-worker/prod/google-client-id")).
		SSMParam("googleClientSecret", logging.EnvOrDefault("SSM_GOOGLE_CLIENT_SECRET_PARAM", "/gmb-post-worker/prod/google-client-secret")).
		SSMParam("tokenCipherKey", logging.EnvOrDefault("SSM_TOKEN_CIPHER_KEY_PARAM", "/gmb-post-worker/prod/token-cipher-key")).
		SNSTopic("notifications", topicARN).
		Feature("notifications", topicARN != "").
		Config("presignTTL", presignTTL.String()).
		Log()
}

func main() {
	lambda.Start(handler)
}

func handler(ctx context.Context, event PublishEvent) (Response, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "publish-post-lambda").Msg("Cold start — first invocation")
	}
	log.Info().
		Str("postId", event.PostID).
		Str("gmbId", event.GmbID).
		Str("accountId", event.AccountID).
		Msg("Publish post Lambda invoked")

	return pipe.run(ctx, event), nil
}
