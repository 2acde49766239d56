// Copyright 2026 Chefops Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package transport

// PolicyGroup is one entry of the GET /policy_groups response, keyed by
// group name at the top level.
type PolicyGroup struct {
	URI      string                    `json:"uri"`
	Policies map[string]PolicyRevision `json:"policies"`
}

// PolicyRevision names the revision of a policy currently pinned in a
// policy group.
type PolicyRevision struct {
	RevisionID string `json:"revision_id"`
}
