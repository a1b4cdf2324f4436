package resolver

import (
	"context"
	"fmt"
	"sync"

	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/netlife"
	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/pkg/logger"
)

// API is the portal surface the resolver consumes. *netlife.Client satisfies
// it; tests swap in a fake.
type API interface {
	GetJobDetails(ctx context.Context, jobUUID string) (*netlife.JobDetails, error)
	ListRegisteredUsers(ctx context.Context, jobUUID string) (map[string]netlife.RegisteredUserInfo, error)
	GetUserProfile(ctx context.Context, userUUID string) (netlife.UserProfile, error)
	GetUserProfilesBulk(ctx context.Context, userUUIDs []string) ([]netlife.UserProfile, error)
	ListAccessKeys(ctx context.Context, jobUUID, subjectUUID string) ([]string, error)
	CreateAccessKey(ctx context.Context, jobUUID, subjectUUID string) error
}

// CacheStore holds per-run caches keyed by portal entity. Each map has its
// own lock so job detail lookups never contend with access key creation.
type CacheStore struct {
	jobMu      sync.Mutex
	jobDetails map[string]*netlife.JobDetails

	keyMu      sync.Mutex
	accessKeys map[string]string
	keyLocks   map[string]*sync.Mutex

	profileMu sync.Mutex
	profiles  map[string]netlife.UserProfile
}

func NewCacheStore() *CacheStore {
	return &CacheStore{
		jobDetails: make(map[string]*netlife.JobDetails),
		accessKeys: make(map[string]string),
		keyLocks:   make(map[string]*sync.Mutex),
		profiles:   make(map[string]netlife.UserProfile),
	}
}

func accessKeyID(jobUUID, subjectUUID string) string {
	return jobUUID + "/" + subjectUUID
}

// subjectLock returns the mutex serialising access key resolution for one
// (job, subject) pair, creating it on first use.
func (s *CacheStore) subjectLock(id string) *sync.Mutex {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	mu, ok := s.keyLocks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.keyLocks[id] = mu
	}
	return mu
}

func (s *CacheStore) getAccessKey(id string) (string, bool) {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	key, ok := s.accessKeys[id]
	return key, ok
}

func (s *CacheStore) putAccessKey(id, key string) {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	s.accessKeys[id] = key
}

func (s *CacheStore) getProfile(userUUID string) (netlife.UserProfile, bool) {
	s.profileMu.Lock()
	defer s.profileMu.Unlock()
	p, ok := s.profiles[userUUID]
	return p, ok
}

func (s *CacheStore) putProfiles(profiles []netlife.UserProfile) {
	s.profileMu.Lock()
	defer s.profileMu.Unlock()
	for _, p := range profiles {
		if p.UUID != "" {
			s.profiles[p.UUID] = p
		}
	}
}

// BulkResolver resolves registered users, user profiles, and gallery access
// keys against a portal, memoising everything in a CacheStore so repeated
// lookups within a run cost one API call.
type BulkResolver struct {
	api       API
	store     *CacheStore
	batchSize int
}

const DefaultProfileBatchSize = 500

func NewBulkResolver(api API, store *CacheStore, batchSize int) *BulkResolver {
	if batchSize <= 0 {
		batchSize = DefaultProfileBatchSize
	}
	return &BulkResolver{api: api, store: store, batchSize: batchSize}
}

// JobDetails returns the cached job record, fetching it on first use.
func (r *BulkResolver) JobDetails(ctx context.Context, jobUUID string) (*netlife.JobDetails, error) {
	r.store.jobMu.Lock()
	if cached, ok := r.store.jobDetails[jobUUID]; ok {
		r.store.jobMu.Unlock()
		return cached, nil
	}
	r.store.jobMu.Unlock()

	details, err := r.api.GetJobDetails(ctx, jobUUID)
	if err != nil {
		return nil, fmt.Errorf("job details %s: %w", jobUUID, err)
	}

	r.store.jobMu.Lock()
	r.store.jobDetails[jobUUID] = details
	r.store.jobMu.Unlock()
	return details, nil
}

// RegisteredUsers returns the subject -> registered user map for a job. A
// lookup failure degrades to an empty map; registration enrichment is
// best-effort and must not sink the job.
func (r *BulkResolver) RegisteredUsers(ctx context.Context, jobUUID string) map[string]netlife.RegisteredUserInfo {
	users, err := r.api.ListRegisteredUsers(ctx, jobUUID)
	if err != nil {
		logger.Warn("Registered user lookup failed", "job_uuid", jobUUID, "error", err.Error())
		return map[string]netlife.RegisteredUserInfo{}
	}
	return users
}

// UserProfiles resolves phone-bearing profiles for a set of user UUIDs,
// chunking uncached lookups into bulk calls of at most batchSize. Chunks
// whose bulk call fails fall back to per-user fetches; users that still
// cannot be resolved are simply absent from the result.
func (r *BulkResolver) UserProfiles(ctx context.Context, userUUIDs []string) map[string]netlife.UserProfile {
	resolved := make(map[string]netlife.UserProfile, len(userUUIDs))
	pending := map[string]bool{}
	var missing []string

	for _, uuid := range userUUIDs {
		if uuid == "" || pending[uuid] {
			continue
		}
		if _, seen := resolved[uuid]; seen {
			continue
		}
		if p, ok := r.store.getProfile(uuid); ok {
			resolved[uuid] = p
		} else {
			pending[uuid] = true
			missing = append(missing, uuid)
		}
	}

	for start := 0; start < len(missing); start += r.batchSize {
		end := start + r.batchSize
		if end > len(missing) {
			end = len(missing)
		}
		chunk := missing[start:end]

		profiles, err := r.api.GetUserProfilesBulk(ctx, chunk)
		if err != nil {
			logger.Warn("Bulk profile lookup failed, falling back to per-user fetches", "chunk_size", len(chunk), "error", err.Error())
			profiles = r.fetchProfilesIndividually(ctx, chunk)
		}

		r.store.putProfiles(profiles)
		for _, p := range profiles {
			if p.UUID != "" {
				resolved[p.UUID] = p
			}
		}
	}

	return resolved
}

func (r *BulkResolver) fetchProfilesIndividually(ctx context.Context, userUUIDs []string) []netlife.UserProfile {
	profiles := make([]netlife.UserProfile, 0, len(userUUIDs))
	for _, uuid := range userUUIDs {
		p, err := r.api.GetUserProfile(ctx, uuid)
		if err != nil {
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles
}

// AccessKey resolves the gallery access key for a subject. Resolution is
// idempotent per (job, subject): cache first, then the portal's key list,
// and only when the list is empty and the subject has images is a key
// created and re-listed. Concurrent callers for the same pair are
// serialised so the portal never sees two create calls.
func (r *BulkResolver) AccessKey(ctx context.Context, jobUUID, subjectUUID string, hasImages bool) (string, error) {
	id := accessKeyID(jobUUID, subjectUUID)

	if key, ok := r.store.getAccessKey(id); ok {
		return key, nil
	}

	mu := r.store.subjectLock(id)
	mu.Lock()
	defer mu.Unlock()

	// A concurrent caller may have resolved it while we waited.
	if key, ok := r.store.getAccessKey(id); ok {
		return key, nil
	}

	keys, err := r.api.ListAccessKeys(ctx, jobUUID, subjectUUID)
	if err != nil {
		return "", fmt.Errorf("list access keys %s: %w", id, err)
	}
	if len(keys) > 0 {
		r.store.putAccessKey(id, keys[0])
		return keys[0], nil
	}

	if !hasImages {
		// Nothing to gate a gallery behind; cache the miss.
		r.store.putAccessKey(id, "")
		return "", nil
	}

	if err := r.api.CreateAccessKey(ctx, jobUUID, subjectUUID); err != nil {
		return "", fmt.Errorf("create access key %s: %w", id, err)
	}

	keys, err = r.api.ListAccessKeys(ctx, jobUUID, subjectUUID)
	if err != nil {
		return "", fmt.Errorf("re-list access keys %s: %w", id, err)
	}
	if len(keys) == 0 {
		return "", fmt.Errorf("access key created but not listed for %s", id)
	}

	r.store.putAccessKey(id, keys[0])
	return keys[0], nil
}
