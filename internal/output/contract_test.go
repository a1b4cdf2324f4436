package output

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/campaign"
	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/config"
)

func TestFormatCSVEmptyDatasetIsHeaderOnly(t *testing.T) {
	data, err := FormatCSV(&campaign.CampaignDataset{})
	require.NoError(t, err)
	assert.Equal(t, CSVHeader+"\n", string(data))
}

func TestFormatCSVRendersRow(t *testing.T) {
	ds := &campaign.CampaignDataset{
		Contacts: []campaign.Contact{{
			Portal:                    "legacyphoto",
			JobUUID:                   "j1",
			JobName:                   "Spring Shoot",
			SubjectUUID:               "s1",
			FirstName:                 "Ada",
			PhoneNumber:               "+1 (555) 123-4567",
			Buyer:                     true,
			AccessCode:                "abc123",
			URL:                       "https://legacyphoto.shop/gallery/s1",
			CustomGalleryURL:          "https://legacyphoto.shop/?code=abc123",
			SMSMarketingConsent:       campaign.ConsentSubscribe,
			SMSMarketingTimestamp:     "2026-03-01T10:00:00Z",
			SMSTransactionalConsent:   campaign.ConsentSubscribe,
			SMSTransactionalTimestamp: "2026-03-01T10:00:00Z",
			ActivityUUID:              "a1",
			ActivityName:              "In Webshop",
			RegisteredUser:            false,
			Resolution:                campaign.ResolutionStrategy,
		}},
	}

	data, err := FormatCSV(ds)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, CSVHeader, lines[0])

	fields := strings.Split(lines[1], ",")
	require.Len(t, fields, 28)
	assert.Equal(t, "legacyphoto", fields[0])
	assert.Equal(t, "Spring Shoot", fields[2])
	assert.Equal(t, "+1 (555) 123-4567", fields[8])
	assert.Equal(t, "Yes", fields[14], "buyer renders as Yes")
	assert.Equal(t, "No", fields[24], "registered_user renders as No")
	assert.Equal(t, "netlife-api-live", fields[27])
}

func TestFormatCSVEmptyFieldsStayEmpty(t *testing.T) {
	ds := &campaign.CampaignDataset{Contacts: []campaign.Contact{{SubjectUUID: "s1"}}}
	data, err := FormatCSV(ds)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	fields := strings.Split(lines[1], ",")
	require.Len(t, fields, 28)
	assert.Equal(t, "", fields[4], "absent external_id is empty, not a placeholder")
	assert.Equal(t, "No", fields[14])
}

func TestHeaderColumnCountMatchesRows(t *testing.T) {
	assert.Len(t, headerColumns, 28)
	assert.Len(t, contactRow(campaign.Contact{}), len(headerColumns))
}

func TestValidateCSVHeader(t *testing.T) {
	good, err := FormatCSV(&campaign.CampaignDataset{})
	require.NoError(t, err)
	assert.NoError(t, ValidateCSVHeader(good))

	assert.Error(t, ValidateCSVHeader([]byte("portal,job_uuid\nrow")))
	assert.Error(t, ValidateCSVHeader([]byte("")))
}

func TestFormatJSONCarriesMetadata(t *testing.T) {
	ds := &campaign.CampaignDataset{
		Metadata: campaign.Metadata{RunID: "r1", CampaignType: "sms", TotalContacts: 1},
		Contacts: []campaign.Contact{{SubjectUUID: "s1", Priority: campaign.PriorityDelivery}},
	}
	data, err := FormatJSON(ds)
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"run_id": "r1"`)
	assert.Contains(t, s, `"campaign_type": "sms"`)
	assert.Contains(t, s, `"priority": 2`)
}

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestSinkWritesFile(t *testing.T) {
	path := t.TempDir() + "/contacts.csv"
	sink := NewSink(config.OutputConfig{Path: path, Format: "csv"})

	err := sink.Write(context.Background(), &campaign.CampaignDataset{
		Contacts: []campaign.Contact{{SubjectUUID: "s1", PhoneNumber: "+1 (555) 123-4567"}},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NoError(t, ValidateCSVHeader(data))
	assert.Contains(t, string(data), "s1")
}

func TestSinkUploadsToS3WithKMS(t *testing.T) {
	fake := &fakeS3{}
	sink := NewSink(config.OutputConfig{
		Path:     "s3://campaign-bucket/exports/contacts.csv",
		Format:   "csv",
		KMSKeyID: "kms-key-1",
	})
	sink.SetS3Client(fake)

	err := sink.Write(context.Background(), &campaign.CampaignDataset{})
	require.NoError(t, err)

	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "campaign-bucket", *in.Bucket)
	assert.Equal(t, "exports/contacts.csv", *in.Key)
	assert.Equal(t, "text/csv", *in.ContentType)
	assert.Equal(t, s3types.ServerSideEncryptionAwsKms, in.ServerSideEncryption)
	assert.Equal(t, "kms-key-1", *in.SSEKMSKeyId)
}

func TestSinkRejectsBadS3URI(t *testing.T) {
	sink := NewSink(config.OutputConfig{Path: "s3://bucket-only", Format: "csv"})
	sink.SetS3Client(&fakeS3{})

	err := sink.Write(context.Background(), &campaign.CampaignDataset{})
	assert.Error(t, err)
}

func TestSplitS3URI(t *testing.T) {
	bucket, key, err := splitS3URI("s3://b/deep/nested/key.json")
	require.NoError(t, err)
	assert.Equal(t, "b", bucket)
	assert.Equal(t, "deep/nested/key.json", key)
}
