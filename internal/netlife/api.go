package netlife

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/pkg/logger"
)

// ListActivitiesInStatus fetches all activities currently in the given
// status across the portal. The target status makes a job campaign-eligible.
func (c *Client) ListActivitiesInStatus(ctx context.Context, statusID string) ([]Activity, error) {
	params := url.Values{}
	params.Set("status_id", statusID)

	body, err := c.Get(ctx, "/activities/search", params)
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}

	rows := c.Paginate(ctx, body)
	activities := make([]Activity, 0, len(rows))
	for _, row := range rows {
		var a Activity
		if err := json.Unmarshal(row, &a); err != nil {
			continue
		}
		if a.UUID != "" {
			activities = append(activities, a)
		}
	}
	return activities, nil
}

// TestConnection checks that the portal is reachable with the configured
// credentials.
func (c *Client) TestConnection(ctx context.Context, statusID string) bool {
	params := url.Values{}
	params.Set("status_id", statusID)
	if _, err := c.Get(ctx, "/activities/search", params); err != nil {
		logger.Warn("portal connection test failed", "portal", c.portalName, "error", err)
		return false
	}
	return true
}

// GetJobDetails fetches a job's detail document.
func (c *Client) GetJobDetails(ctx context.Context, jobUUID string) (*JobDetails, error) {
	body, err := c.Get(ctx, "/jobs/"+jobUUID, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching job %s details: %w", jobUUID, err)
	}

	// Some portals wrap the document in a data envelope
	doc := body
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 && env.Data[0] == '{' {
		doc = env.Data
	}

	var head struct {
		UUID string `json:"uuid"`
		Name string `json:"name"`
		Job  struct {
			UUID string `json:"uuid"`
			Name string `json:"name"`
		} `json:"job"`
	}
	_ = json.Unmarshal(doc, &head)

	details := &JobDetails{UUID: head.UUID, Name: head.Name, raw: doc}
	if details.UUID == "" {
		details.UUID = head.Job.UUID
	}
	if details.Name == "" {
		details.Name = head.Job.Name
	}
	if details.UUID == "" {
		details.UUID = jobUUID
	}
	if details.Name == "" {
		details.Name = "Job " + jobUUID
	}
	return details, nil
}

// ListSubjects fetches a job's subjects. hasOrder filters to buyers (true)
// or non-buyers (false); nil fetches everyone. Image data is always included
// so the assembler can honor the has-images requirement.
func (c *Client) ListSubjects(ctx context.Context, jobUUID string, hasOrder *bool) ([]Subject, error) {
	params := url.Values{}
	if hasOrder != nil {
		if *hasOrder {
			params.Set("filter_has_order", "true")
		} else {
			params.Set("filter_has_order", "false")
		}
	}
	params.Set("include_images", "true")
	params.Set("include_favorite_image", "true")

	body, err := c.Get(ctx, "/jobs/"+jobUUID+"/subjects", params)
	if err != nil {
		return nil, fmt.Errorf("listing subjects for job %s: %w", jobUUID, err)
	}

	rows := c.Paginate(ctx, body)
	subjects := make([]Subject, 0, len(rows))
	for _, row := range rows {
		if s, ok := ParseSubject(row); ok {
			subjects = append(subjects, s)
		}
	}
	return subjects, nil
}

// ListRegisteredUsers fetches the job's bulk registered-user rows, paginated
// and normalized. The result maps subject uuid → registered-user info.
func (c *Client) ListRegisteredUsers(ctx context.Context, jobUUID string) (map[string]RegisteredUserInfo, error) {
	body, err := c.Get(ctx, "/jobs/"+jobUUID+"/users", nil)
	if err != nil {
		return nil, fmt.Errorf("listing registered users for job %s: %w", jobUUID, err)
	}

	out := map[string]RegisteredUserInfo{}
	for _, row := range c.Paginate(ctx, body) {
		if subjectUUID, info, ok := ParseRegisteredUserRow(row); ok {
			out[subjectUUID] = info
		}
	}
	return out, nil
}

// GetUserProfile fetches one registered user's detail record.
func (c *Client) GetUserProfile(ctx context.Context, userUUID string) (UserProfile, error) {
	body, err := c.Get(ctx, "/users/"+userUUID, nil)
	if err != nil {
		return UserProfile{}, fmt.Errorf("fetching user %s: %w", userUUID, err)
	}

	profile, ok := ParseUserProfile(body)
	if !ok {
		// envelope fallback
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 {
			profile, ok = ParseUserProfile(env.Data)
		}
	}
	if !ok {
		return UserProfile{}, fmt.Errorf("user %s: unrecognized profile shape", userUUID)
	}
	if profile.UUID == "" {
		profile.UUID = userUUID
	}
	return profile, nil
}

// GetUserProfilesBulk resolves a batch of user profiles in a single call.
// Callers chunk the id list; this issues exactly one request.
func (c *Client) GetUserProfilesBulk(ctx context.Context, userUUIDs []string) ([]UserProfile, error) {
	body, err := c.Post(ctx, "/users/bulk", map[string][]string{"uuids": userUUIDs})
	if err != nil {
		return nil, fmt.Errorf("bulk fetching %d user profiles: %w", len(userUUIDs), err)
	}

	var profiles []UserProfile
	for _, row := range c.Paginate(ctx, body) {
		if p, ok := ParseUserProfile(row); ok {
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

// ListAccessKeys fetches the existing access keys for a subject.
func (c *Client) ListAccessKeys(ctx context.Context, jobUUID, subjectUUID string) ([]string, error) {
	body, err := c.Get(ctx, "/jobs/"+jobUUID+"/subjects/"+subjectUUID+"/access-keys", nil)
	if err != nil {
		return nil, fmt.Errorf("listing access keys for subject %s: %w", subjectUUID, err)
	}
	return parseAccessKeys(body), nil
}

// CreateAccessKey issues a new access key for a subject. The caller checks
// for existing keys first; creation is only triggered when none exist.
func (c *Client) CreateAccessKey(ctx context.Context, jobUUID, subjectUUID string) error {
	if _, err := c.Post(ctx, "/jobs/"+jobUUID+"/subjects/"+subjectUUID+"/access-keys", nil); err != nil {
		return fmt.Errorf("creating access key for subject %s: %w", subjectUUID, err)
	}
	return nil
}
