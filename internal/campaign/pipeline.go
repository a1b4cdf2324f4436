package campaign

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/config"
	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/netlife"
	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/pkg/logger"
	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/resolver"
)

// State tracks where a run is in its lifecycle. Transitions are linear; a
// failed job never moves the run backwards.
type State int32

const (
	StateIdle State = iota
	StateFetchingActivities
	StateResolvingSubjects
	StateResolvingRegisteredUsers
	StateAssembling
	StateDeduplicating
	StateSorting
	StateDone
)

var stateNames = map[State]string{
	StateIdle:                     "idle",
	StateFetchingActivities:       "fetching_activities",
	StateResolvingSubjects:        "resolving_subjects",
	StateResolvingRegisteredUsers: "resolving_registered_users",
	StateAssembling:               "assembling",
	StateDeduplicating:            "deduplicating",
	StateSorting:                  "sorting",
	StateDone:                     "done",
}

func (s State) String() string { return stateNames[s] }

// PortalAPI is the portal surface the pipeline drives. *netlife.Client
// satisfies it.
type PortalAPI interface {
	resolver.API
	PortalName() string
	PortalRoot() string
	TestConnection(ctx context.Context, statusID string) bool
	ListActivitiesInStatus(ctx context.Context, statusID string) ([]netlife.Activity, error)
	ListSubjects(ctx context.Context, jobUUID string, hasOrder *bool) ([]netlife.Subject, error)
	Stats() *netlife.Stats
}

// Pipeline turns portal activity feeds into a sorted, deduplicated contact
// dataset. One Pipeline serves one run.
type Pipeline struct {
	cfg       config.PipelineConfig
	portals   []PortalAPI
	assembler *Assembler
	stats     RunStats

	mu    sync.Mutex
	state State

	now func() time.Time
}

func NewPipeline(cfg config.PipelineConfig, portals ...PortalAPI) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		portals:   portals,
		assembler: NewAssembler(cfg.ContactFilter),
		now:       time.Now,
	}
}

// State returns the run's current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Stats exposes the run counters, readable while the run is in flight.
func (p *Pipeline) Stats() *RunStats { return &p.stats }

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	logger.Info("Pipeline state changed", "state", s.String())
}

// jobWork is the unit one goroutine fetches: a job's activities plus
// everything needed to assemble its contacts.
type jobWork struct {
	portal     PortalAPI
	res        *resolver.BulkResolver
	jobUUID    string
	activities []netlife.Activity

	details    *netlife.JobDetails
	subjects   []netlife.Subject
	registered map[string]netlife.RegisteredUserInfo
	index      map[string][]string
	failed     bool
}

// Run executes the pipeline to completion. It always returns a dataset; job
// and subject failures shrink it but never abort the run.
func (p *Pipeline) Run(ctx context.Context) *CampaignDataset {
	runID := uuid.New().String()
	started := p.now()
	logger.Info("Campaign run starting",
		"run_id", runID,
		"portals", len(p.portals),
		"audience", p.cfg.Audience,
		"contact_filter", p.cfg.ContactFilter,
	)

	p.setState(StateFetchingActivities)
	jobs := p.fetchActivities(ctx)

	p.setState(StateResolvingSubjects)
	p.resolveSubjects(ctx, jobs)

	profiles := map[string]netlife.UserProfile{}
	if p.cfg.CheckRegisteredUsers {
		p.setState(StateResolvingRegisteredUsers)
		profiles = p.resolveProfiles(ctx, jobs)
	}

	p.setState(StateAssembling)
	contacts := p.assembleAll(ctx, jobs, profiles)

	p.setState(StateDeduplicating)
	contacts, dups := dedupeContacts(contacts)
	p.stats.Duplicates.Add(int64(dups))

	p.setState(StateSorting)
	sort.SliceStable(contacts, func(i, j int) bool {
		return contacts[i].Priority < contacts[j].Priority
	})

	p.setState(StateDone)

	dataset := &CampaignDataset{
		Metadata: p.buildMetadata(runID, jobs, len(contacts)),
		Contacts: contacts,
	}

	p.logFinalStats(started)
	return dataset
}

// fetchActivities enumerates the selling-status activity feed of every
// reachable portal and groups activities by job. Portals that fail the
// connection test or the feed fetch are skipped whole.
func (p *Pipeline) fetchActivities(ctx context.Context) []*jobWork {
	var jobs []*jobWork

	for _, portal := range p.portals {
		if !portal.TestConnection(ctx, p.cfg.TargetStatus) {
			logger.Warn("Portal unreachable, skipping", "portal", portal.PortalName())
			continue
		}

		activities, err := portal.ListActivitiesInStatus(ctx, p.cfg.TargetStatus)
		if err != nil {
			logger.Warn("Activity fetch failed, skipping portal",
				"portal", portal.PortalName(), "error", err.Error())
			continue
		}

		res := resolver.NewBulkResolver(portal, resolver.NewCacheStore(), p.cfg.ProfileBatchSize)
		byJob := map[string]*jobWork{}
		var order []string
		for _, a := range activities {
			if a.Job.UUID == "" {
				continue
			}
			w, ok := byJob[a.Job.UUID]
			if !ok {
				w = &jobWork{portal: portal, res: res, jobUUID: a.Job.UUID}
				byJob[a.Job.UUID] = w
				order = append(order, a.Job.UUID)
			}
			w.activities = append(w.activities, a)
		}
		for _, id := range order {
			jobs = append(jobs, byJob[id])
		}

		logger.Info("Portal activity feed fetched",
			"portal", portal.PortalName(),
			"activities", len(activities),
			"jobs", len(order),
		)
	}

	return jobs
}

// resolveSubjects fans out one goroutine per job to fetch its details,
// subjects, and registered-user map. A job that fails is marked and skipped
// at assembly; the rest of the run is unaffected.
func (p *Pipeline) resolveSubjects(ctx context.Context, jobs []*jobWork) {
	hasOrder := audienceFilter(p.cfg.Audience)

	var wg sync.WaitGroup
	for _, w := range jobs {
		wg.Add(1)
		go func(w *jobWork) {
			defer wg.Done()

			details, err := w.res.JobDetails(ctx, w.jobUUID)
			if err != nil {
				logger.Warn("Job details fetch failed, skipping job",
					"portal", w.portal.PortalName(), "job_uuid", w.jobUUID, "error", err.Error())
				w.failed = true
				p.stats.JobsFailed.Add(1)
				return
			}
			w.details = details

			subjects, err := w.portal.ListSubjects(ctx, w.jobUUID, hasOrder)
			if err != nil {
				logger.Warn("Subject fetch failed, skipping job",
					"portal", w.portal.PortalName(), "job_uuid", w.jobUUID, "error", err.Error())
				w.failed = true
				p.stats.JobsFailed.Add(1)
				return
			}
			w.subjects = subjects
			w.index = netlife.BuildSubjectActivityIndex(details, subjects)

			if p.cfg.CheckRegisteredUsers {
				w.registered = w.res.RegisteredUsers(ctx, w.jobUUID)
			}

			p.stats.JobsProcessed.Add(1)
			p.stats.SubjectsSeen.Add(int64(len(subjects)))
			for _, s := range subjects {
				if s.PhoneNumber != "" || s.Delivery1.MobilePhone != "" || s.Delivery2.MobilePhone != "" {
					p.stats.SubjectsWithPhone.Add(1)
				}
				if s.Email != "" || s.Delivery1.EmailAddress != "" || s.Delivery2.EmailAddress != "" {
					p.stats.SubjectsWithEmail.Add(1)
				}
				if s.HasImages {
					p.stats.SubjectsWithImages.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()
}

// resolveProfiles bulk-fetches the account profile of every registered user
// seen across all jobs, grouped per portal so each resolver's cache serves
// its own portal.
func (p *Pipeline) resolveProfiles(ctx context.Context, jobs []*jobWork) map[string]netlife.UserProfile {
	byResolver := map[*resolver.BulkResolver][]string{}
	for _, w := range jobs {
		if w.failed {
			continue
		}
		for _, info := range w.registered {
			if info.UserUUID != "" {
				byResolver[w.res] = append(byResolver[w.res], info.UserUUID)
			}
		}
	}

	profiles := map[string]netlife.UserProfile{}
	for res, uuids := range byResolver {
		for id, profile := range res.UserProfiles(ctx, uuids) {
			profiles[id] = profile
		}
	}
	return profiles
}

// assembleAll builds contacts job by job. Subject-level failures (access key
// resolution, malformed rows) skip the pair, never the job.
func (p *Pipeline) assembleAll(ctx context.Context, jobs []*jobWork, profiles map[string]netlife.UserProfile) []Contact {
	var contacts []Contact

	for _, w := range jobs {
		if w.failed {
			continue
		}
		for _, subject := range w.subjects {
			if subject.UUID == "" {
				continue
			}

			var registered *netlife.RegisteredUserInfo
			var profile *netlife.UserProfile
			if info, ok := w.registered[subject.UUID]; ok {
				registered = &info
				if prof, ok := profiles[info.UserUUID]; ok {
					profile = &prof
				}
			}
			if p.cfg.RegisteredOnly && registered == nil {
				p.stats.ContactsFiltered.Add(1)
				continue
			}

			accessKey, err := w.res.AccessKey(ctx, w.jobUUID, subject.UUID, subject.HasImages)
			if err != nil {
				logger.Warn("Access key resolution failed",
					"portal", w.portal.PortalName(),
					"job_uuid", w.jobUUID,
					"subject_uuid", subject.UUID,
					"error", err.Error())
				p.stats.AssemblyErrors.Add(1)
				accessKey = ""
			}

			for _, activity := range p.subjectActivities(w, subject) {
				contact, ok := p.assembler.Assemble(assembleInput{
					Portal:     w.portal.PortalName(),
					PortalRoot: w.portal.PortalRoot(),
					Job:        w.details,
					Activity:   activity,
					Subject:    subject,
					Registered: registered,
					Profile:    profile,
					AccessKey:  accessKey,
					Now:        p.now(),
				})
				if !ok {
					p.stats.ContactsFiltered.Add(1)
					continue
				}
				p.stats.ContactsAssembled.Add(1)
				contacts = append(contacts, contact)
			}
		}
	}

	return contacts
}

// subjectActivities resolves which of a job's activities a subject belongs
// to: the job-details index first, then the subject's direct reference, then
// the job's first activity as a last resort.
func (p *Pipeline) subjectActivities(w *jobWork, subject netlife.Subject) []netlife.Activity {
	byUUID := map[string]netlife.Activity{}
	for _, a := range w.activities {
		byUUID[a.UUID] = a
	}

	var out []netlife.Activity
	for _, id := range w.index[subject.UUID] {
		if a, ok := byUUID[id]; ok {
			out = append(out, a)
		}
	}
	if len(out) > 0 {
		return out
	}

	if subject.ActivityUUID != "" {
		if a, ok := byUUID[subject.ActivityUUID]; ok {
			return []netlife.Activity{a}
		}
	}
	if len(w.activities) > 0 {
		return w.activities[:1]
	}
	return nil
}

// audienceFilter maps the audience mode to the portal's has-order filter.
func audienceFilter(audience string) *bool {
	switch audience {
	case "buyers":
		v := true
		return &v
	case "non-buyers":
		v := false
		return &v
	default:
		return nil
	}
}

func (p *Pipeline) buildMetadata(runID string, jobs []*jobWork, total int) Metadata {
	var apiCalls, apiFailures int64
	portalSeen := map[string]bool{}
	var portals []string
	var jobUUIDs []string
	for _, w := range jobs {
		if name := w.portal.PortalName(); !portalSeen[name] {
			portalSeen[name] = true
			portals = append(portals, name)
			apiCalls += w.portal.Stats().CallsTotal.Load()
			apiFailures += w.portal.Stats().CallsFailed.Load()
		}
		if !w.failed {
			jobUUIDs = append(jobUUIDs, w.jobUUID)
		}
	}

	return Metadata{
		RunID:          runID,
		GeneratedAt:    p.now().UTC(),
		CampaignType:   "sms",
		Portals:        portals,
		JobUUIDs:       jobUUIDs,
		Audience:       p.cfg.Audience,
		ContactFilter:  p.cfg.ContactFilter,
		TotalContacts:  total,
		JobsProcessed:  p.stats.JobsProcessed.Load(),
		JobsFailed:     p.stats.JobsFailed.Load(),
		SubjectsSeen:   p.stats.SubjectsSeen.Load(),
		Duplicates:     p.stats.Duplicates.Load(),
		Filtered:       p.stats.ContactsFiltered.Load(),
		AssemblyErrors: p.stats.AssemblyErrors.Load(),
		APICalls:       apiCalls,
		APIFailures:    apiFailures,
	}
}

// logFinalStats emits the per-run summary block, one line per portal plus
// the aggregate counters.
func (p *Pipeline) logFinalStats(started time.Time) {
	for _, portal := range p.portals {
		s := portal.Stats()
		logger.Info("Portal summary",
			"portal", portal.PortalName(),
			"brand", config.PortalBrand(portal.PortalName()),
			"api_calls", s.CallsTotal.Load(),
			"api_failures", s.CallsFailed.Load(),
		)
	}

	fields := append(p.stats.Snapshot(), "duration", p.now().Sub(started).Round(time.Millisecond).String())
	logger.Info("Campaign run finished", fields...)
}
