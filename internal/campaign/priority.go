package campaign

// Priority ranks a contact's deliverability confidence. Lower sends first.
type Priority int

const (
	// PriorityRegistered marks contacts backed by a registered user account.
	PriorityRegistered Priority = 1
	// PriorityDelivery marks contacts resolved from delivery records or flat
	// subject fields.
	PriorityDelivery Priority = 2
	// PriorityAnonymous is reserved for contacts with no identity signal.
	// The current resolution chain never produces one, but the rank stays so
	// output ordering does not shift if a weaker source is ever added.
	PriorityAnonymous Priority = 3
)

// assignPriority classifies a contact by its strongest identity source.
func assignPriority(registered bool) Priority {
	if registered {
		return PriorityRegistered
	}
	return PriorityDelivery
}
