package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/fpang/gmb-post-worker/internal/store"
)

type fakeSNS struct {
	published []*sns.PublishInput
	err       error
}

func (f *fakeSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.published = append(f.published, params)
	return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
}

type fakeUsers struct {
	user *store.User
}

func (f *fakeUsers) GetUser(ctx context.Context, userID string) (*store.User, error) {
	if f.user == nil {
		return nil, store.ErrUserNotFound
	}
	return f.user, nil
}

func TestNotify(t *testing.T) {
	snsClient := &fakeSNS{}
	n := NewNotifier(snsClient, &fakeUsers{user: &store.User{ID: "u1", Email: "owner@example.com", Name: "Jordan"}},
		"arn:aws:sns:us-east-2:123:post-published")
	n.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }

	post := &store.Post{Summary: "Grand opening", TopicType: "STANDARD"}
	if err := n.Notify(context.Background(), "u1", post); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(snsClient.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(snsClient.published))
	}
	input := snsClient.published[0]
	if aws.ToString(input.TopicArn) != "arn:aws:sns:us-east-2:123:post-published" {
		t.Errorf("unexpected topic: %s", aws.ToString(input.TopicArn))
	}

	var msg emailMessage
	if err := json.Unmarshal([]byte(aws.ToString(input.Message)), &msg); err != nil {
		t.Fatalf("message is not valid JSON: %v", err)
	}
	if msg.Email != "owner@example.com" {
		t.Errorf("unexpected recipient: %s", msg.Email)
	}
	if msg.Subject != "GMB Post Published Successfully" {
		t.Errorf("unexpected subject: %s", msg.Subject)
	}
	for _, want := range []string{"Jordan", "Grand opening", "STANDARD", "2026-09-01T12:00:00Z"} {
		if !strings.Contains(msg.Message, want) {
			t.Errorf("message body missing %q: %s", want, msg.Message)
		}
	}
}

func TestNotify_UserMissing(t *testing.T) {
	snsClient := &fakeSNS{}
	n := NewNotifier(snsClient, &fakeUsers{}, "arn:topic")

	err := n.Notify(context.Background(), "ghost", &store.Post{})
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if len(snsClient.published) != 0 {
		t.Errorf("nothing should be published for a missing user")
	}
}

func TestNotify_PublishFailure(t *testing.T) {
	n := NewNotifier(&fakeSNS{err: errors.New("throttled")},
		&fakeUsers{user: &store.User{Email: "a@b.c", Name: "A"}}, "arn:topic")

	if err := n.Notify(context.Background(), "u1", &store.Post{}); err == nil {
		t.Error("expected error when SNS publish fails")
	}
}
