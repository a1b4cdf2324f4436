package campaign

import "sync/atomic"

// RunStats aggregates counters across the per-job goroutines of a run.
type RunStats struct {
	JobsProcessed      atomic.Int64
	JobsFailed         atomic.Int64
	SubjectsSeen       atomic.Int64
	SubjectsWithPhone  atomic.Int64
	SubjectsWithEmail  atomic.Int64
	SubjectsWithImages atomic.Int64
	ContactsAssembled  atomic.Int64
	ContactsFiltered   atomic.Int64
	AssemblyErrors     atomic.Int64
	Duplicates         atomic.Int64
}

// Snapshot flattens the counters into log fields.
func (s *RunStats) Snapshot() []interface{} {
	return []interface{}{
		"jobs_processed", s.JobsProcessed.Load(),
		"jobs_failed", s.JobsFailed.Load(),
		"subjects_seen", s.SubjectsSeen.Load(),
		"subjects_with_phone", s.SubjectsWithPhone.Load(),
		"subjects_with_email", s.SubjectsWithEmail.Load(),
		"subjects_with_images", s.SubjectsWithImages.Load(),
		"contacts_assembled", s.ContactsAssembled.Load(),
		"contacts_filtered", s.ContactsFiltered.Load(),
		"assembly_errors", s.AssemblyErrors.Load(),
		"duplicates_removed", s.Duplicates.Load(),
	}
}
