package main

import "encoding/json"

// PublishEvent is the trigger payload handed to this worker, one per
// scheduled post that has come due. accountId, gmb_id, organizationId, and
// post_id are required; user_id is optional and only drives the
// notification.
type PublishEvent struct {
	AccountID      string `json:"accountId"`
	GmbID          string `json:"gmb_id"`
	OrganizationID string `json:"organizationId"`
	PostID         string `json:"post_id"`
	UserID         string `json:"user_id,omitempty"`
}

// Response is the uniform invocation result. Body is a JSON document.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

func successResponse(gmbPostName string) Response {
	body, _ := json.Marshal(map[string]string{
		"message":     "Scheduled post published successfully",
		"gmbPostName": gmbPostName,
	})
	return Response{StatusCode: 200, Body: string(body)}
}

// ineligibleResponse reports a terminal non-retryable rejection: there was
// nothing to do, not a system fault.
func ineligibleResponse(message string) Response {
	body, _ := json.Marshal(map[string]string{"message": message})
	return Response{StatusCode: 400, Body: string(body)}
}

func failureResponse(err error) Response {
	body, _ := json.Marshal(map[string]string{
		"message": "Failed to process scheduled post",
		"error":   err.Error(),
	})
	return Response{StatusCode: 500, Body: string(body)}
}
