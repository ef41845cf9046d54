// Package lambdaboot provides the Lambda cold-start bootstrap helpers:
// AWS config, S3, the Aurora Data API store, SNS, and SSM secret loading.
// The handler's init() is a short composition of these.
package lambdaboot

import (
	"context"
	"encoding/base64"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gmb-post-worker/internal/logging"
	"github.com/fpang/gmb-post-worker/internal/store"
)

// AWSClients holds the core AWS SDK clients shared across the boot helpers.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// S3Clients holds the S3 client, presigner, and media bucket name.
type S3Clients struct {
	Client    *s3.Client
	Presigner *s3.PresignClient
	Bucket    string
}

// GoogleOAuthCreds holds the OAuth client credentials for the token
// exchange.
type GoogleOAuthCreds struct {
	ClientID     string
	ClientSecret string
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitS3 creates an S3 client, presigner, and reads the bucket name from the
// given environment variable. Fatals if the env var is empty.
func InitS3(cfg aws.Config, bucketEnvVar string) S3Clients {
	client := s3.NewFromConfig(cfg)
	bucket := os.Getenv(bucketEnvVar)
	if bucket == "" {
		log.Fatal().Str("envVar", bucketEnvVar).Msg("Bucket environment variable is required")
	}
	return S3Clients{
		Client:    client,
		Presigner: s3.NewPresignClient(client),
		Bucket:    bucket,
	}
}

// InitPostStore creates the Aurora Data API repository from DB_CLUSTER_ARN,
// DB_SECRET_ARN, and DB_NAME. Fatals if any is missing.
func InitPostStore(cfg aws.Config) *store.DataAPIClient {
	clusterARN := os.Getenv("DB_CLUSTER_ARN")
	secretARN := os.Getenv("DB_SECRET_ARN")
	database := os.Getenv("DB_NAME")
	if clusterARN == "" || secretARN == "" || database == "" {
		log.Fatal().Msg("DB_CLUSTER_ARN, DB_SECRET_ARN, and DB_NAME are required")
	}
	return store.NewDataAPIClient(rdsdata.NewFromConfig(cfg), clusterARN, secretARN, database)
}

// InitSNS creates an SNS client and reads the notification topic ARN from
// NOTIFICATION_TOPIC_ARN. Returns an empty ARN (with a warning) when not
// configured; the handler then skips notifications.
func InitSNS(cfg aws.Config) (*sns.Client, string) {
	topicARN := os.Getenv("NOTIFICATION_TOPIC_ARN")
	if topicARN == "" {
		log.Warn().Msg("NOTIFICATION_TOPIC_ARN not set — notifications disabled")
	}
	return sns.NewFromConfig(cfg), topicARN
}

// LoadGoogleOAuthCreds fetches the Google OAuth client id and secret, from
// env vars when set, otherwise from SSM Parameter Store. Fatals on error.
func LoadGoogleOAuthCreds(ssmClient *ssm.Client) GoogleOAuthCreds {
	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	clientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")

	if clientID == "" {
		clientID = mustLoadParam(ssmClient,
			logging.EnvOrDefault("SSM_GOOGLE_CLIENT_ID_PARAM", "/gmb-post-worker/prod/google-client-id"), false)
	}
	if clientSecret == "" {
		clientSecret = mustLoadParam(ssmClient,
			logging.EnvOrDefault("SSM_GOOGLE_CLIENT_SECRET_PARAM", "/gmb-post-worker/prod/google-client-secret"), true)
	}
	return GoogleOAuthCreds{ClientID: clientID, ClientSecret: clientSecret}
}

// LoadTokenCipherKey fetches the base64-encoded AES key used to decrypt
// stored refresh tokens. Fatals on error.
func LoadTokenCipherKey(ssmClient *ssm.Client) []byte {
	encoded := os.Getenv("TOKEN_CIPHER_KEY")
	if encoded == "" {
		encoded = mustLoadParam(ssmClient,
			logging.EnvOrDefault("SSM_TOKEN_CIPHER_KEY_PARAM", "/gmb-post-worker/prod/token-cipher-key"), true)
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		log.Fatal().Err(err).Msg("Token cipher key is not valid base64")
	}
	if len(key) != 32 {
		log.Fatal().Int("bytes", len(key)).Msg("Token cipher key must be 32 bytes (AES-256)")
	}
	return key
}

func mustLoadParam(ssmClient *ssm.Client, name string, decrypt bool) string {
	startTime := time.Now()
	result, err := ssmClient.GetParameter(context.Background(), &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: aws.Bool(decrypt),
	})
	if err != nil {
		log.Fatal().Err(err).Str("param", name).Msg("Failed to read parameter from SSM")
	}
	log.Debug().Str("param", name).Dur("elapsed", time.Since(startTime)).Msg("Parameter loaded from SSM")
	return *result.Parameter.Value
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
