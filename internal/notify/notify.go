// Package notify sends the post-publish email notification over SNS.
// Delivery is best effort: the caller logs failures and never lets them
// undo or mask a successful publish.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gmb-post-worker/internal/store"
)

// publishAPI is the subset of the SNS client used here; tests substitute a
// fake.
type publishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// UserStore looks up the notification recipient.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*store.User, error)
}

// emailMessage is the shape the notification channel consumes.
type emailMessage struct {
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Notifier publishes email notifications to an SNS topic.
type Notifier struct {
	sns      publishAPI
	users    UserStore
	topicARN string
	now      func() time.Time
}

// NewNotifier creates a Notifier for the given topic.
func NewNotifier(snsClient publishAPI, users UserStore, topicARN string) *Notifier {
	return &Notifier{sns: snsClient, users: users, topicARN: topicARN, now: time.Now}
}

// Notify looks up the owning user and publishes a publish-success email.
// Returns an error for the caller to log; it must not propagate past the
// handler.
func (n *Notifier) Notify(ctx context.Context, userID string, post *store.Post) error {
	user, err := n.users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	msg := emailMessage{
		Email:   user.Email,
		Subject: "GMB Post Published Successfully",
		Message: fmt.Sprintf(
			"Hello %s,\n\nYour scheduled Google My Business post has been published successfully.\n\n"+
				"Post Summary: %s\nPost Type: %s\nPublished At: %s\n\nBest regards,\nGMB Post Scheduler",
			user.Name, post.Summary, post.TopicType, n.now().UTC().Format(time.RFC3339)),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: marshal message: %w", err)
	}

	if _, err := n.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Message:  aws.String(string(body)),
		Subject:  aws.String(msg.Subject),
	}); err != nil {
		return fmt.Errorf("notify: publish: %w", err)
	}

	log.Info().Str("email", user.Email).Msg("Publish notification sent")
	return nil
}
