package campaign

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/netlife"
)

// ContactFilter values select which channel a contact must carry to survive
// assembly.
const (
	FilterPhoneOnly = "phone-only"
	FilterEmailOnly = "email-only"
	FilterAny       = "any"
)

// assembleInput carries everything the assembler needs for one
// (activity, subject) pair. Registered and Profile are nil when the subject
// has no account mapping or profile enrichment is off.
type assembleInput struct {
	Portal     string
	PortalRoot string
	Job        *netlife.JobDetails
	Activity   netlife.Activity
	Subject    netlife.Subject
	Registered *netlife.RegisteredUserInfo
	Profile    *netlife.UserProfile
	AccessKey  string
	Now        time.Time
}

// Assembler builds Contacts from resolved portal data. It holds no state
// beyond the filter mode, so one instance serves all goroutines.
type Assembler struct {
	contactFilter string
}

func NewAssembler(contactFilter string) *Assembler {
	if contactFilter == "" {
		contactFilter = FilterAny
	}
	return &Assembler{contactFilter: contactFilter}
}

// phoneCandidates lists a subject's phone sources strongest first: the
// registered account profile, then the delivery blocks, then the flat
// subject fields.
func phoneCandidates(in assembleInput) []string {
	var out []string
	if in.Profile != nil {
		out = append(out, in.Profile.PhoneNumber)
	}
	return append(out,
		in.Subject.Delivery1.MobilePhone,
		in.Subject.Delivery2.MobilePhone,
		in.Subject.PhoneNumber,
		in.Subject.PhoneNumber2,
	)
}

func emailCandidates(in assembleInput) []string {
	var out []string
	if in.Profile != nil {
		out = append(out, in.Profile.Email)
	}
	if in.Registered != nil {
		out = append(out, in.Registered.Email)
	}
	return append(out,
		in.Subject.Delivery1.EmailAddress,
		in.Subject.Delivery2.EmailAddress,
		in.Subject.Email,
		in.Subject.Email2,
	)
}

// pickTwo walks candidates in order and returns the first value and the
// first later value distinct from it.
func pickTwo(candidates []string, normalize func(string) string) (primary, secondary string) {
	for _, raw := range candidates {
		v := normalize(raw)
		if v == "" {
			continue
		}
		switch {
		case primary == "":
			primary = v
		case v != primary && secondary == "":
			secondary = v
			return
		}
	}
	return
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// fallbackAccessCode derives a stable stand-in gallery code when the portal
// holds no access key. Same subject, phone, and calendar day always produce
// the same code, so reruns within a day stay idempotent.
func fallbackAccessCode(subjectUUID, phone string, now time.Time) string {
	seed := subjectUUID + ":" + phone + ":" + now.UTC().Format("2006-01-02")
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:16]
}

// consentTimestamp is the activity's selling-status entry time, falling back
// to assembly time when the portal omitted it.
func consentTimestamp(activity netlife.Activity, now time.Time) string {
	if s := strings.TrimSpace(activity.Starting); s != "" {
		return s
	}
	return now.UTC().Format(time.RFC3339)
}

// Assemble builds the contact for one (activity, subject) pair. The second
// return is false when the contact-method filter drops the pair.
func (a *Assembler) Assemble(in assembleInput) (Contact, bool) {
	phone, phone2 := pickTwo(phoneCandidates(in), FormatPhone)
	email, email2 := pickTwo(emailCandidates(in), normalizeEmail)

	switch a.contactFilter {
	case FilterPhoneOnly:
		if phone == "" {
			return Contact{}, false
		}
	case FilterEmailOnly:
		if email == "" {
			return Contact{}, false
		}
	default:
		if phone == "" && email == "" {
			return Contact{}, false
		}
	}

	accessCode := in.AccessKey
	if accessCode == "" && in.Subject.HasImages {
		accessCode = fallbackAccessCode(in.Subject.UUID, phone, in.Now)
	}

	root := strings.TrimSuffix(in.PortalRoot, "/")
	galleryURL := root + "/gallery/" + in.Subject.UUID
	customGalleryURL := ""
	if accessCode != "" {
		customGalleryURL = root + "/?code=" + accessCode
	}

	consentTS := consentTimestamp(in.Activity, in.Now)

	c := Contact{
		Portal:       in.Portal,
		JobUUID:      in.Job.UUID,
		JobName:      in.Job.Name,
		SubjectUUID:  in.Subject.UUID,
		ExternalID:   in.Subject.ExternalID,
		FirstName:    in.Subject.FirstName,
		LastName:     in.Subject.LastName,
		ParentName:   in.Subject.ParentName,
		PhoneNumber:  phone,
		PhoneNumber2: phone2,
		Email:        email,
		Email2:       email2,
		Country:      in.Subject.Country,
		Group:        in.Subject.Group,
		Buyer:        in.Subject.Purchases > 0,

		AccessCode:       accessCode,
		URL:              galleryURL,
		CustomGalleryURL: customGalleryURL,

		SMSMarketingConsent:       ConsentSubscribe,
		SMSMarketingTimestamp:     consentTS,
		SMSTransactionalConsent:   ConsentSubscribe,
		SMSTransactionalTimestamp: consentTS,

		ActivityUUID: in.Activity.UUID,
		ActivityName: in.Activity.Name,

		Resolution: ResolutionStrategy,
	}

	if in.Registered != nil {
		c.RegisteredUser = true
		c.RegisteredUserEmail = in.Registered.Email
		c.RegisteredUserUUID = in.Registered.UserUUID
		if in.Profile != nil {
			c.RegisteredUserPhone = FormatPhone(in.Profile.PhoneNumber)
		}
	}
	c.Priority = assignPriority(c.RegisteredUser)

	return c, true
}
