package campaign

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/netlife"
)

func TestFormatPhone(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ten digits", "5551234567", "+1 (555) 123-4567"},
		{"formatted input", "(555) 123-4567", "+1 (555) 123-4567"},
		{"eleven with country code", "15551234567", "+1 (555) 123-4567"},
		{"plus one prefix", "+1 555 123 4567", "+1 (555) 123-4567"},
		{"longer keeps last ten", "00915551234567", "+1 (555) 123-4567"},
		{"too short", "123456", ""},
		{"empty", "", ""},
		{"letters only", "call me", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPhone(tt.in))
		})
	}
}

var assembleNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func baseInput() assembleInput {
	return assembleInput{
		Portal:     "legacyphoto",
		PortalRoot: "https://legacyphoto.shop",
		Job:        &netlife.JobDetails{UUID: "j1", Name: "Spring Shoot"},
		Activity:   netlife.Activity{UUID: "a1", Name: "In Webshop", Starting: "2026-03-01T10:00:00Z"},
		Subject: netlife.Subject{
			UUID:        "s1",
			FirstName:   "Ada",
			LastName:    "Lund",
			PhoneNumber: "5551234567",
			Email:       "Ada@Example.com",
		},
		Now: assembleNow,
	}
}

func TestAssembleBasicContact(t *testing.T) {
	a := NewAssembler(FilterAny)
	c, ok := a.Assemble(baseInput())
	require.True(t, ok)

	assert.Equal(t, "legacyphoto", c.Portal)
	assert.Equal(t, "j1", c.JobUUID)
	assert.Equal(t, "Spring Shoot", c.JobName)
	assert.Equal(t, "+1 (555) 123-4567", c.PhoneNumber)
	assert.Equal(t, "ada@example.com", c.Email)
	assert.Equal(t, "https://legacyphoto.shop/gallery/s1", c.URL)
	assert.Equal(t, "SUBSCRIBE", c.SMSMarketingConsent)
	assert.Equal(t, "SUBSCRIBE", c.SMSTransactionalConsent)
	assert.Equal(t, "2026-03-01T10:00:00Z", c.SMSMarketingTimestamp)
	assert.Equal(t, "netlife-api-live", c.Resolution)
	assert.False(t, c.Buyer)
	assert.False(t, c.RegisteredUser)
	assert.Equal(t, PriorityDelivery, c.Priority)
}

func TestAssembleChannelPrecedence(t *testing.T) {
	in := baseInput()
	in.Profile = &netlife.UserProfile{UUID: "u1", PhoneNumber: "5550000001", Email: "account@example.com"}
	in.Registered = &netlife.RegisteredUserInfo{UserUUID: "u1", Email: "account@example.com"}
	in.Subject.Delivery1 = netlife.Delivery{MobilePhone: "5550000002", EmailAddress: "d1@example.com"}
	in.Subject.Delivery2 = netlife.Delivery{MobilePhone: "5550000003"}

	a := NewAssembler(FilterAny)
	c, ok := a.Assemble(in)
	require.True(t, ok)

	assert.Equal(t, "+1 (555) 000-0001", c.PhoneNumber, "account profile phone wins")
	assert.Equal(t, "+1 (555) 000-0002", c.PhoneNumber2, "first distinct later value fills the secondary slot")
	assert.Equal(t, "account@example.com", c.Email)
	assert.Equal(t, "d1@example.com", c.Email2)
	assert.True(t, c.RegisteredUser)
	assert.Equal(t, "u1", c.RegisteredUserUUID)
	assert.Equal(t, "+1 (555) 000-0001", c.RegisteredUserPhone)
	assert.Equal(t, PriorityRegistered, c.Priority)
}

func TestAssembleDeliveryFallback(t *testing.T) {
	in := baseInput()
	in.Subject.PhoneNumber = ""
	in.Subject.Delivery2 = netlife.Delivery{MobilePhone: "5559876543"}

	a := NewAssembler(FilterAny)
	c, ok := a.Assemble(in)
	require.True(t, ok)
	assert.Equal(t, "+1 (555) 987-6543", c.PhoneNumber)
	assert.Equal(t, "", c.PhoneNumber2)
}

func TestAssembleSecondarySlotsRequireDistinctValues(t *testing.T) {
	in := baseInput()
	in.Subject.Delivery1 = netlife.Delivery{MobilePhone: "555 123 4567"}
	in.Subject.Delivery2 = netlife.Delivery{MobilePhone: "(555) 123-4567"}

	a := NewAssembler(FilterAny)
	c, ok := a.Assemble(in)
	require.True(t, ok)
	assert.Equal(t, "+1 (555) 123-4567", c.PhoneNumber)
	assert.Equal(t, "", c.PhoneNumber2, "same number in both delivery blocks must not duplicate")
}

func TestAssembleContactFilters(t *testing.T) {
	phoneOnly := netlife.Subject{UUID: "s1", PhoneNumber: "5551234567"}
	emailOnly := netlife.Subject{UUID: "s2", Email: "a@b.c"}
	neither := netlife.Subject{UUID: "s3"}

	tests := []struct {
		filter  string
		subject netlife.Subject
		want    bool
	}{
		{FilterPhoneOnly, phoneOnly, true},
		{FilterPhoneOnly, emailOnly, false},
		{FilterPhoneOnly, neither, false},
		{FilterEmailOnly, phoneOnly, false},
		{FilterEmailOnly, emailOnly, true},
		{FilterEmailOnly, neither, false},
		{FilterAny, phoneOnly, true},
		{FilterAny, emailOnly, true},
		{FilterAny, neither, false},
	}
	for _, tt := range tests {
		t.Run(tt.filter+"/"+tt.subject.UUID, func(t *testing.T) {
			in := baseInput()
			in.Subject = tt.subject
			_, ok := NewAssembler(tt.filter).Assemble(in)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestAssembleShortPhoneDoesNotSatisfyPhoneFilter(t *testing.T) {
	in := baseInput()
	in.Subject.PhoneNumber = "12345"
	in.Subject.Email = ""

	_, ok := NewAssembler(FilterPhoneOnly).Assemble(in)
	assert.False(t, ok, "a number too short to normalize is no phone at all")
}

func TestAssembleConsentTimestampFallsBackToNow(t *testing.T) {
	in := baseInput()
	in.Activity.Starting = ""

	c, ok := NewAssembler(FilterAny).Assemble(in)
	require.True(t, ok)
	assert.Equal(t, assembleNow.Format(time.RFC3339), c.SMSMarketingTimestamp)
	assert.Equal(t, c.SMSMarketingTimestamp, c.SMSTransactionalTimestamp)
}

func TestAssembleAccessCode(t *testing.T) {
	t.Run("portal key is used verbatim", func(t *testing.T) {
		in := baseInput()
		in.AccessKey = "portal-key"
		in.Subject.HasImages = true
		c, ok := NewAssembler(FilterAny).Assemble(in)
		require.True(t, ok)
		assert.Equal(t, "portal-key", c.AccessCode)
		assert.Equal(t, "https://legacyphoto.shop/?code=portal-key", c.CustomGalleryURL)
	})

	t.Run("fallback is deterministic within a day", func(t *testing.T) {
		in := baseInput()
		in.Subject.HasImages = true
		c1, _ := NewAssembler(FilterAny).Assemble(in)
		c2, _ := NewAssembler(FilterAny).Assemble(in)
		require.NotEmpty(t, c1.AccessCode)
		assert.Len(t, c1.AccessCode, 16)
		assert.Equal(t, c1.AccessCode, c2.AccessCode)

		in.Now = assembleNow.AddDate(0, 0, 1)
		c3, _ := NewAssembler(FilterAny).Assemble(in)
		assert.NotEqual(t, c1.AccessCode, c3.AccessCode)
	})

	t.Run("no images means no fallback code", func(t *testing.T) {
		in := baseInput()
		c, ok := NewAssembler(FilterAny).Assemble(in)
		require.True(t, ok)
		assert.Equal(t, "", c.AccessCode)
		assert.Equal(t, "", c.CustomGalleryURL)
	})
}

func TestAssembleBuyerFlag(t *testing.T) {
	in := baseInput()
	in.Subject.Purchases = 2
	c, ok := NewAssembler(FilterAny).Assemble(in)
	require.True(t, ok)
	assert.True(t, c.Buyer)
}

func TestDedupeContacts(t *testing.T) {
	contacts := []Contact{
		{ActivityUUID: "a1", SubjectUUID: "s1", Portal: "first"},
		{ActivityUUID: "a1", SubjectUUID: "s2"},
		{ActivityUUID: "a1", SubjectUUID: "s1", Portal: "second"},
		{ActivityUUID: "a2", SubjectUUID: "s1"},
		{ActivityUUID: "a1", SubjectUUID: "s1", Portal: "third"},
	}

	out, dups := dedupeContacts(contacts)
	require.Len(t, out, 3)
	assert.Equal(t, 2, dups)
	assert.Equal(t, "first", out[0].Portal, "first occurrence wins")
	assert.Equal(t, "s2", out[1].SubjectUUID)
	assert.Equal(t, "a2", out[2].ActivityUUID)
}

func TestDedupeIsIdempotent(t *testing.T) {
	contacts := []Contact{
		{ActivityUUID: "a1", SubjectUUID: "s1"},
		{ActivityUUID: "a1", SubjectUUID: "s1"},
	}
	once, _ := dedupeContacts(contacts)
	twice, dups := dedupeContacts(once)
	assert.Equal(t, once, twice)
	assert.Zero(t, dups)
}

func TestAssignPriority(t *testing.T) {
	assert.Equal(t, PriorityRegistered, assignPriority(true))
	assert.Equal(t, PriorityDelivery, assignPriority(false))
	assert.Less(t, int(PriorityRegistered), int(PriorityDelivery))
	assert.Less(t, int(PriorityDelivery), int(PriorityAnonymous))
}
