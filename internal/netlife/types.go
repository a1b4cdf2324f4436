package netlife

import "encoding/json"

// Activity is one occurrence of a subject entering the tracked status within
// a job. Immutable once fetched.
type Activity struct {
	UUID     string      `json:"uuid"`
	Name     string      `json:"name"`
	Starting string      `json:"starting"` // when the activity entered the status
	Job      ActivityJob `json:"job"`
}

// ActivityJob is the job reference embedded in an activity row.
type ActivityJob struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// Delivery is one of a subject's delivery contact blocks.
type Delivery struct {
	EmailAddress string `json:"email_address"`
	MobilePhone  string `json:"mobile_phone"`
}

// Subject is the normalized subject record produced at the API boundary.
// Enrichment fills registered-user data later; after that it is never
// mutated.
type Subject struct {
	UUID         string
	Name         string
	FirstName    string
	LastName     string
	ParentName   string
	ExternalID   string
	Country      string
	Group        string
	PhoneNumber  string
	PhoneNumber2 string
	Email        string
	Email2       string
	Delivery1    Delivery
	Delivery2    Delivery
	HasImages    bool
	ImageUUIDs   []string
	ActivityUUID string // direct activity reference, when the portal provides one
	Purchases    int    // purchase record count; >0 implies buyer
}

// RegisteredUserInfo is a subject's registered-user mapping, resolved in bulk
// per job.
type RegisteredUserInfo struct {
	UserUUID string
	Email    string // lower-cased for stable comparison
}

// UserProfile is the detail record of a registered user account.
type UserProfile struct {
	UUID        string
	Email       string
	PhoneNumber string
}

// JobDetails is a job's detail document. The raw body is kept so the
// subject-to-activity index can be derived from whichever shape the portal
// returned.
type JobDetails struct {
	UUID string
	Name string
	raw  json.RawMessage
}
