package netlife

import (
	"encoding/json"
	"strings"
)

// This file normalizes the portals' loosely shaped JSON into the typed
// records the rest of the pipeline consumes. Field-name precedence is fixed
// here, once, at the boundary: userUuid before uuid, userUsername before
// email, favorite_image_uuid before favoriteImageUuid before favorite_image.

// rawSubject tolerates every subject shape the portals emit.
type rawSubject struct {
	UUID            string          `json:"uuid"`
	Name            string          `json:"name"`
	FirstName       string          `json:"first_name"`
	LastName        string          `json:"last_name"`
	ParentName      string          `json:"parent_name"`
	ExternalID      string          `json:"external_id"`
	Country         string          `json:"country"`
	Group           string          `json:"group"`
	PhoneNumber     string          `json:"phone_number"`
	PhoneNumber2    string          `json:"phone_number_2"`
	Email           string          `json:"email"`
	Email2          string          `json:"email_2"`
	Delivery1       *Delivery       `json:"delivery_1"`
	Delivery2       *Delivery       `json:"delivery_2"`
	Images          json.RawMessage `json:"images"`
	GroupImages     json.RawMessage `json:"group_images"`
	Image           json.RawMessage `json:"image"`
	FavImageUUID    string          `json:"favorite_image_uuid"`
	FavImageUUIDAlt string          `json:"favoriteImageUuid"`
	FavImage        json.RawMessage `json:"favorite_image"`
	ActivityUUID    string          `json:"activity_uuid"`
	Activity        json.RawMessage `json:"activity"` // string or {uuid}
	Orders          json.RawMessage `json:"orders"`
	PurchaseHistory json.RawMessage `json:"purchase_history"`
}

// ParseSubject normalizes one subject row.
func ParseSubject(row json.RawMessage) (Subject, bool) {
	var raw rawSubject
	if err := json.Unmarshal(row, &raw); err != nil {
		return Subject{}, false
	}
	uuid := strings.TrimSpace(raw.UUID)
	if uuid == "" {
		return Subject{}, false
	}

	s := Subject{
		UUID:         uuid,
		Name:         strings.TrimSpace(raw.Name),
		FirstName:    strings.TrimSpace(raw.FirstName),
		LastName:     strings.TrimSpace(raw.LastName),
		ParentName:   strings.TrimSpace(raw.ParentName),
		ExternalID:   strings.TrimSpace(raw.ExternalID),
		Country:      strings.TrimSpace(raw.Country),
		Group:        strings.TrimSpace(raw.Group),
		PhoneNumber:  strings.TrimSpace(raw.PhoneNumber),
		PhoneNumber2: strings.TrimSpace(raw.PhoneNumber2),
		Email:        strings.TrimSpace(raw.Email),
		Email2:       strings.TrimSpace(raw.Email2),
		ActivityUUID: activityRef(raw),
		Purchases:    countRecords(raw.Orders) + countRecords(raw.PurchaseHistory),
	}
	if raw.Delivery1 != nil {
		s.Delivery1 = trimDelivery(*raw.Delivery1)
	}
	if raw.Delivery2 != nil {
		s.Delivery2 = trimDelivery(*raw.Delivery2)
	}

	s.ImageUUIDs = collectImageIDs(raw)
	s.HasImages = len(s.ImageUUIDs) > 0 || hasEntries(raw.Images) || hasEntries(raw.GroupImages)
	return s, true
}

func trimDelivery(d Delivery) Delivery {
	return Delivery{
		EmailAddress: strings.TrimSpace(d.EmailAddress),
		MobilePhone:  strings.TrimSpace(d.MobilePhone),
	}
}

// activityRef extracts a subject's direct activity reference; a plain string
// or an object with a uuid are both accepted.
func activityRef(raw rawSubject) string {
	if raw.ActivityUUID != "" {
		return strings.TrimSpace(raw.ActivityUUID)
	}
	if len(raw.Activity) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw.Activity, &asString); err == nil {
		return strings.TrimSpace(asString)
	}
	var asObj struct {
		UUID string `json:"uuid"`
	}
	if err := json.Unmarshal(raw.Activity, &asObj); err == nil {
		return strings.TrimSpace(asObj.UUID)
	}
	return ""
}

func countRecords(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return 0
	}
	return len(list)
}

func hasEntries(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return len(list) > 0
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		return len(obj) > 0
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return strings.TrimSpace(str) != ""
	}
	return false
}

// collectImageIDs gathers image UUIDs from a subject's image fields in the
// order the portal listed them, without duplicates. Image collections come
// back as string lists, object lists, or uuid-keyed maps.
func collectImageIDs(raw rawSubject) []string {
	var out []string
	seen := map[string]bool{}
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	scan := func(field json.RawMessage) {
		if len(field) == 0 {
			return
		}
		var strList []string
		if err := json.Unmarshal(field, &strList); err == nil {
			for _, id := range strList {
				add(id)
			}
			return
		}
		var objList []struct {
			UUID string `json:"uuid"`
		}
		if err := json.Unmarshal(field, &objList); err == nil {
			for _, o := range objList {
				add(o.UUID)
			}
			return
		}
		var asMap map[string]json.RawMessage
		if err := json.Unmarshal(field, &asMap); err == nil {
			// uuid-keyed maps carry long keys; anything else is a single object
			allLong := len(asMap) > 0
			for k := range asMap {
				if len(k) < 20 {
					allLong = false
					break
				}
			}
			if allLong {
				for k := range asMap {
					add(k)
				}
			} else {
				var single struct {
					UUID string `json:"uuid"`
				}
				if err := json.Unmarshal(field, &single); err == nil {
					add(single.UUID)
				}
			}
			return
		}
		var asString string
		if err := json.Unmarshal(field, &asString); err == nil {
			add(asString)
		}
	}

	scan(raw.Images)
	scan(raw.GroupImages)
	scan(raw.Image)
	add(raw.FavImageUUID)
	add(raw.FavImageUUIDAlt)
	if len(raw.FavImage) > 0 {
		var fav struct {
			UUID string `json:"uuid"`
		}
		if err := json.Unmarshal(raw.FavImage, &fav); err == nil {
			add(fav.UUID)
		} else {
			var favStr string
			if err := json.Unmarshal(raw.FavImage, &favStr); err == nil {
				add(favStr)
			}
		}
	}
	return out
}

// ParseRegisteredUserRow normalizes one row of the bulk registered-users
// endpoint into (subjectUUID, info). Emails are lower-cased for stable
// comparison.
func ParseRegisteredUserRow(row json.RawMessage) (string, RegisteredUserInfo, bool) {
	var raw struct {
		SubjectUUID  string `json:"subjectUuid"`
		UserUUID     string `json:"userUuid"`
		UUID         string `json:"uuid"`
		UserUsername string `json:"userUsername"`
		Email        string `json:"email"`
	}
	if err := json.Unmarshal(row, &raw); err != nil {
		return "", RegisteredUserInfo{}, false
	}

	subjectUUID := strings.TrimSpace(raw.SubjectUUID)
	if subjectUUID == "" {
		return "", RegisteredUserInfo{}, false
	}

	userUUID := strings.TrimSpace(raw.UserUUID)
	if userUUID == "" {
		userUUID = strings.TrimSpace(raw.UUID)
	}
	email := strings.TrimSpace(raw.UserUsername)
	if email == "" {
		email = strings.TrimSpace(raw.Email)
	}

	return subjectUUID, RegisteredUserInfo{
		UserUUID: userUUID,
		Email:    strings.ToLower(email),
	}, true
}

// ParseUserProfile normalizes a user detail record. Phone comes from
// phone_number or the first entry of a phones list.
func ParseUserProfile(row json.RawMessage) (UserProfile, bool) {
	var raw struct {
		UUID        string   `json:"uuid"`
		Email       string   `json:"email"`
		Username    string   `json:"username"`
		PhoneNumber string   `json:"phone_number"`
		Phones      []string `json:"phones"`
	}
	if err := json.Unmarshal(row, &raw); err != nil {
		return UserProfile{}, false
	}
	uuid := strings.TrimSpace(raw.UUID)
	if uuid == "" {
		return UserProfile{}, false
	}

	email := strings.TrimSpace(raw.Email)
	if email == "" {
		email = strings.TrimSpace(raw.Username)
	}
	phone := strings.TrimSpace(raw.PhoneNumber)
	if phone == "" && len(raw.Phones) > 0 {
		phone = strings.TrimSpace(raw.Phones[0])
	}

	return UserProfile{
		UUID:        uuid,
		Email:       strings.ToLower(email),
		PhoneNumber: phone,
	}, true
}

// parseAccessKeys extracts key strings from the access-key endpoint, which
// answers with a bare list of objects or strings, or wraps the list in
// access_keys or data.
func parseAccessKeys(body json.RawMessage) []string {
	if len(body) == 0 {
		return nil
	}

	extract := func(list []json.RawMessage) []string {
		var keys []string
		for _, item := range list {
			var asObj struct {
				AccessKey string `json:"access_key"`
				Key       string `json:"key"`
			}
			if err := json.Unmarshal(item, &asObj); err == nil {
				if asObj.AccessKey != "" {
					keys = append(keys, asObj.AccessKey)
					continue
				}
				if asObj.Key != "" {
					keys = append(keys, asObj.Key)
					continue
				}
			}
			var asStr string
			if err := json.Unmarshal(item, &asStr); err == nil && asStr != "" {
				keys = append(keys, asStr)
			}
		}
		return keys
	}

	var bare []json.RawMessage
	if err := json.Unmarshal(body, &bare); err == nil {
		return extract(bare)
	}

	var env struct {
		AccessKeys []json.RawMessage `json:"access_keys"`
		Data       []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		if env.AccessKeys != nil {
			return extract(env.AccessKeys)
		}
		return extract(env.Data)
	}

	var single string
	if err := json.Unmarshal(body, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}

// BuildSubjectActivityIndex derives subject→activity links from a job's
// detail document, merged with the enriched subject list. A subject links to
// its direct activity reference plus the activities of its images.
func BuildSubjectActivityIndex(details *JobDetails, subjects []Subject) map[string][]string {
	index := map[string][]string{}
	if details == nil {
		return index
	}

	var doc struct {
		Subjects json.RawMessage `json:"subjects"`
		Images   json.RawMessage `json:"images"`
		Job      struct {
			Subjects json.RawMessage `json:"subjects"`
		} `json:"job"`
	}
	_ = json.Unmarshal(details.raw, &doc)

	subjectRows := doc.Subjects
	if len(subjectRows) == 0 {
		subjectRows = doc.Job.Subjects
	}

	imageActivity := imageActivityIndex(doc.Images)

	// Detail-document subjects
	byUUID := map[string]Subject{}
	for _, row := range coerceRows(subjectRows) {
		if s, ok := ParseSubject(row); ok {
			byUUID[s.UUID] = s
		}
	}
	// Enriched subjects override: they carry image data the details may lack
	for _, s := range subjects {
		if existing, ok := byUUID[s.UUID]; ok && len(s.ImageUUIDs) == 0 {
			s.ImageUUIDs = existing.ImageUUIDs
			if s.ActivityUUID == "" {
				s.ActivityUUID = existing.ActivityUUID
			}
		}
		byUUID[s.UUID] = s
	}

	for uuid, s := range byUUID {
		var acts []string
		seen := map[string]bool{}
		add := func(a string) {
			if a != "" && !seen[a] {
				seen[a] = true
				acts = append(acts, a)
			}
		}
		add(s.ActivityUUID)
		for _, imgID := range s.ImageUUIDs {
			add(imageActivity[imgID])
		}
		if len(acts) > 0 {
			index[uuid] = acts
		}
	}
	return index
}

// imageActivityIndex maps image uuid → activity uuid from the detail
// document's image collection (list or uuid-keyed map).
func imageActivityIndex(images json.RawMessage) map[string]string {
	out := map[string]string{}
	type rawImage struct {
		UUID         string `json:"uuid"`
		ActivityUUID string `json:"activity_uuid"`
		ActivityAlt  string `json:"activityUuid"`
		Activity     struct {
			UUID string `json:"uuid"`
		} `json:"activity"`
	}
	activityOf := func(img rawImage) string {
		if img.Activity.UUID != "" {
			return img.Activity.UUID
		}
		if img.ActivityUUID != "" {
			return img.ActivityUUID
		}
		return img.ActivityAlt
	}

	var list []rawImage
	if err := json.Unmarshal(images, &list); err == nil {
		for _, img := range list {
			if img.UUID != "" {
				out[img.UUID] = activityOf(img)
			}
		}
		return out
	}

	var byUUID map[string]rawImage
	if err := json.Unmarshal(images, &byUUID); err == nil {
		for uuid, img := range byUUID {
			out[uuid] = activityOf(img)
		}
	}
	return out
}

// coerceRows accepts a list of rows or a uuid-keyed map of rows.
func coerceRows(raw json.RawMessage) []json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var byKey map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byKey); err == nil {
		out := make([]json.RawMessage, 0, len(byKey))
		for _, row := range byKey {
			out = append(out, row)
		}
		return out
	}
	return nil
}
