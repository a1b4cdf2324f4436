package campaign

import "time"

// ResolutionStrategy tags every contact with the acquisition path that
// produced it, so downstream senders can distinguish live API pulls from
// future replays or imports.
const ResolutionStrategy = "netlife-api-live"

// ConsentSubscribe is the consent value for subjects whose job is in the
// selling status. Both marketing and transactional consent carry it while
// the webshop is open.
const ConsentSubscribe = "SUBSCRIBE"

// Contact is one deliverable SMS campaign row. Field order mirrors the
// output contract.
type Contact struct {
	Portal       string `json:"portal"`
	JobUUID      string `json:"job_uuid"`
	JobName      string `json:"job_name"`
	SubjectUUID  string `json:"subject_uuid"`
	ExternalID   string `json:"external_id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	ParentName   string `json:"parent_name"`
	PhoneNumber  string `json:"phone_number"`
	PhoneNumber2 string `json:"phone_number_2"`
	Email        string `json:"email"`
	Email2       string `json:"email_2"`
	Country      string `json:"country"`
	Group        string `json:"group"`
	Buyer        bool   `json:"buyer"`

	AccessCode       string `json:"access_code"`
	URL              string `json:"url"`
	CustomGalleryURL string `json:"custom_gallery_url"`

	SMSMarketingConsent       string `json:"sms_marketing_consent"`
	SMSMarketingTimestamp     string `json:"sms_marketing_timestamp"`
	SMSTransactionalConsent   string `json:"sms_transactional_consent"`
	SMSTransactionalTimestamp string `json:"sms_transactional_timestamp"`

	ActivityUUID string `json:"activity_uuid"`
	ActivityName string `json:"activity_name"`

	RegisteredUser      bool   `json:"registered_user"`
	RegisteredUserEmail string `json:"registered_user_email"`
	RegisteredUserUUID  string `json:"registered_user_uuid"`

	Resolution string `json:"resolution_strategy"`

	// Priority ranks deliverability confidence; it orders the dataset but is
	// not a contract column.
	Priority Priority `json:"priority"`
	// RegisteredUserPhone is carried for the JSON output only.
	RegisteredUserPhone string `json:"registered_user_phone,omitempty"`
}

// Metadata describes one completed run.
type Metadata struct {
	RunID          string    `json:"run_id"`
	GeneratedAt    time.Time `json:"generated_at"`
	CampaignType   string    `json:"campaign_type"`
	Portals        []string  `json:"portals"`
	JobUUIDs       []string  `json:"job_uuids"`
	Audience       string    `json:"audience"`
	ContactFilter  string    `json:"contact_filter"`
	TotalContacts  int       `json:"total_contacts"`
	JobsProcessed  int64     `json:"jobs_processed"`
	JobsFailed     int64     `json:"jobs_failed"`
	SubjectsSeen   int64     `json:"subjects_seen"`
	Duplicates     int64     `json:"duplicates_removed"`
	Filtered       int64     `json:"contacts_filtered"`
	AssemblyErrors int64     `json:"assembly_errors"`
	APICalls       int64     `json:"api_calls"`
	APIFailures    int64     `json:"api_failures"`
}

// CampaignDataset is the terminal product of a pipeline run. It is always
// produced, even when every job failed.
type CampaignDataset struct {
	Metadata Metadata  `json:"metadata"`
	Contacts []Contact `json:"contacts"`
}
