package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/campaign"
)

// CSVHeader is the contract header. Senders ingest by position; the column
// order must never change.
const CSVHeader = "portal,job_uuid,job_name,subject_uuid,external_id,first_name,last_name,parent_name,phone_number,phone_number_2,email,email_2,country,group,buyer,access_code,url,custom_gallery_url,sms_marketing_consent,sms_marketing_timestamp,sms_transactional_consent,sms_transactional_timestamp,activity_uuid,activity_name,registered_user,registered_user_email,registered_user_uuid,resolution_strategy"

var headerColumns = strings.Split(CSVHeader, ",")

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// contactRow renders one contact in contract column order.
func contactRow(c campaign.Contact) []string {
	return []string{
		c.Portal,
		c.JobUUID,
		c.JobName,
		c.SubjectUUID,
		c.ExternalID,
		c.FirstName,
		c.LastName,
		c.ParentName,
		c.PhoneNumber,
		c.PhoneNumber2,
		c.Email,
		c.Email2,
		c.Country,
		c.Group,
		yesNo(c.Buyer),
		c.AccessCode,
		c.URL,
		c.CustomGalleryURL,
		c.SMSMarketingConsent,
		c.SMSMarketingTimestamp,
		c.SMSTransactionalConsent,
		c.SMSTransactionalTimestamp,
		c.ActivityUUID,
		c.ActivityName,
		yesNo(c.RegisteredUser),
		c.RegisteredUserEmail,
		c.RegisteredUserUUID,
		c.Resolution,
	}
}

// FormatCSV renders a dataset in the contract CSV shape. An empty dataset
// still yields the header line.
func FormatCSV(ds *campaign.CampaignDataset) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(headerColumns); err != nil {
		return nil, fmt.Errorf("writing CSV header: %w", err)
	}
	for _, c := range ds.Contacts {
		if err := w.Write(contactRow(c)); err != nil {
			return nil, fmt.Errorf("writing CSV row for subject %s: %w", c.SubjectUUID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatJSON renders the dataset with its run metadata, indented for human
// inspection.
func FormatJSON(ds *campaign.CampaignDataset) ([]byte, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling dataset: %w", err)
	}
	return data, nil
}

// ValidateCSVHeader checks that rendered CSV output opens with the exact
// contract header. Run before delivery; a drifted header poisons every
// downstream import.
func ValidateCSVHeader(data []byte) error {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	got := strings.TrimRight(string(line), "\r")
	if got != CSVHeader {
		return fmt.Errorf("CSV header mismatch: got %q", got)
	}
	return nil
}
