package campaign

// Deduplicator tracks (activity, subject) pairs so each pair yields at most
// one contact. Not safe for concurrent use; deduplication runs after the
// per-job fan-in.
type Deduplicator struct {
	seen       map[string]struct{}
	duplicates int
}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// Admit reports whether the pair is new. The first caller for a pair wins;
// later callers are counted as duplicates and rejected.
func (d *Deduplicator) Admit(activityUUID, subjectUUID string) bool {
	key := activityUUID + "|" + subjectUUID
	if _, dup := d.seen[key]; dup {
		d.duplicates++
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Duplicates returns how many pairs were rejected so far.
func (d *Deduplicator) Duplicates() int { return d.duplicates }

// dedupeContacts keeps the first contact per (activity, subject) pair,
// preserving input order, and returns the survivors plus the drop count.
func dedupeContacts(contacts []Contact) ([]Contact, int) {
	d := NewDeduplicator()
	out := contacts[:0:0]
	for _, c := range contacts {
		if d.Admit(c.ActivityUUID, c.SubjectUUID) {
			out = append(out, c)
		}
	}
	return out, d.Duplicates()
}
