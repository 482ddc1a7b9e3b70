package clientsync

import (
	"sort"
	"strings"
)

type Result struct {
	Mismatches []Mismatch
	Unlinked   []LinkCandidate
	Orphaned   []OrphanedLink
}

// Detect diffs every linked pair over ComparableFields. Unlinked clients are
// returned as link candidates and staff users are never diffed. Mismatches
// are ordered by client id, then field order.
func Detect(users []UserRecord, linked []ClientRecord, unlinked []ClientRecord, staffIDs []int) Result {
	staff := make(map[int]struct{}, len(staffIDs))
	for _, id := range staffIDs {
		staff[id] = struct{}{}
	}
	userByID := make(map[int]UserRecord, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}

	pairs := sortedByID(linked)
	result := Result{Mismatches: []Mismatch{}}
	linkedUsers := make(map[int]struct{}, len(pairs))
	for _, client := range pairs {
		linkedUsers[client.WpUserID] = struct{}{}
		if _, isStaff := staff[client.WpUserID]; isStaff {
			continue
		}
		user, ok := userByID[client.WpUserID]
		if !ok {
			result.Orphaned = append(result.Orphaned, OrphanedLink{ClientID: client.ID, WpUserID: client.WpUserID})
			continue
		}
		result.Mismatches = append(result.Mismatches, diffPair(client, user)...)
	}

	// users a client could be linked to, by email
	byEmail := make(map[string][]int)
	for _, u := range users {
		if _, isStaff := staff[u.ID]; isStaff {
			continue
		}
		if _, taken := linkedUsers[u.ID]; taken {
			continue
		}
		if email := normalizeEmail(u.Value(FieldEmail)); email != "" {
			byEmail[email] = append(byEmail[email], u.ID)
		}
	}
	for _, client := range sortedByID(unlinked) {
		candidate := LinkCandidate{ClientID: client.ID, Email: client.Value(FieldEmail)}
		if ids := byEmail[normalizeEmail(candidate.Email)]; len(ids) == 1 {
			candidate.SuggestedUserID = ids[0]
		}
		result.Unlinked = append(result.Unlinked, candidate)
	}
	return result
}

// diffPair compares trimmed values; nil reads as empty and empty equals empty.
// The mismatch keeps the values as stored.
func diffPair(client ClientRecord, user UserRecord) []Mismatch {
	var out []Mismatch
	for _, field := range ComparableFields {
		fromClient := client.Value(field)
		fromWP := user.Value(field)
		if strings.TrimSpace(fromClient) == strings.TrimSpace(fromWP) {
			continue
		}
		out = append(out, Mismatch{
			ClientID:        client.ID,
			WpUserID:        user.ID,
			FieldName:       field,
			ValueFromClient: fromClient,
			ValueFromWP:     fromWP,
		})
	}
	return out
}

func sortedByID(records []ClientRecord) []ClientRecord {
	out := make([]ClientRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// splitByLink partitions clients into linked and unlinked.
func splitByLink(clients []ClientRecord) (linked, unlinked []ClientRecord) {
	for _, c := range clients {
		if c.Linked() {
			linked = append(linked, c)
		} else {
			unlinked = append(unlinked, c)
		}
	}
	return linked, unlinked
}
