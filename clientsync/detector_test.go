package clientsync

import (
	"reflect"
	"testing"
)

func TestDetect_SingleFieldDifference(t *testing.T) {
	clients := []ClientRecord{rec(1, 10, "Sam", "Roy", "sam@example.com", "506-453-2345", "E3B 1A1")}
	users := []UserRecord{user(10, "Samuel", "Roy", "sam@example.com", "506-453-2345", "E3B 1A1")}

	got := Detect(users, clients, nil, nil)

	want := []Mismatch{{ClientID: 1, WpUserID: 10, FieldName: FieldFirstName, ValueFromClient: "Sam", ValueFromWP: "Samuel"}}
	if !reflect.DeepEqual(got.Mismatches, want) {
		t.Fatalf("expected %+v, got %+v", want, got.Mismatches)
	}
}

func TestDetect_Comparison(t *testing.T) {
	cases := []struct {
		name   string
		client ClientRecord
		user   UserRecord
		fields []Field
	}{
		{
			name:   "equal pair",
			client: rec(1, 10, "Sam", "Roy", "sam@example.com", "506", "E3B"),
			user:   user(10, "Sam", "Roy", "sam@example.com", "506", "E3B"),
		},
		{
			name:   "surrounding whitespace is not a difference",
			client: rec(1, 10, " Sam", "Roy ", "sam@example.com", "506", "E3B"),
			user:   user(10, "Sam\t", "Roy", " sam@example.com", "506", "E3B"),
		},
		{
			name:   "case is a difference",
			client: rec(1, 10, "Sam", "Roy", "Sam@example.com", "506", "E3B"),
			user:   user(10, "Sam", "Roy", "sam@example.com", "506", "E3B"),
			fields: []Field{FieldEmail},
		},
		{
			name:   "missing meta equals empty",
			client: rec(1, 10, "Sam", "Roy", "sam@example.com", "", "E3B"),
			user: func() UserRecord {
				u := user(10, "Sam", "Roy", "sam@example.com", "", "E3B")
				u.Values[FieldPhone] = nil
				return u
			}(),
		},
		{
			name:   "fields in comparison order",
			client: rec(1, 10, "A", "B", "a@example.com", "1", "X"),
			user:   user(10, "C", "B", "a@example.com", "2", "Y"),
			fields: []Field{FieldFirstName, FieldPhone, FieldPostalCode},
		},
	}

	for _, tc := range cases {
		got := Detect([]UserRecord{tc.user}, []ClientRecord{tc.client}, nil, nil)
		var fields []Field
		for _, m := range got.Mismatches {
			fields = append(fields, m.FieldName)
		}
		if !reflect.DeepEqual(fields, tc.fields) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.fields, fields)
		}
	}
}

func TestDetect_KeepsStoredValues(t *testing.T) {
	clients := []ClientRecord{rec(1, 10, " Sam ", "Roy", "sam@example.com", "506", "E3B")}
	users := []UserRecord{user(10, "Samuel", "Roy", "sam@example.com", "506", "E3B")}

	got := Detect(users, clients, nil, nil)
	if len(got.Mismatches) != 1 || got.Mismatches[0].ValueFromClient != " Sam " {
		t.Fatalf("expected the untrimmed client value, got %+v", got.Mismatches)
	}
}

func TestDetect_StaffOrphansAndOrder(t *testing.T) {
	clients := []ClientRecord{
		rec(3, 30, "Cy", "Roy", "cy@example.com", "1", "X"),
		rec(1, 10, "Al", "Roy", "al@example.com", "1", "X"),
		rec(2, 20, "Bo", "Roy", "bo@example.com", "1", "X"),
		rec(4, 40, "Di", "Roy", "di@example.com", "1", "X"),
	}
	users := []UserRecord{
		user(10, "Alan", "Roy", "al@example.com", "1", "X"),
		user(20, "Bob", "Roy", "bo@example.com", "1", "X"),
		user(30, "Cyrus", "Roy", "cy@example.com", "1", "X"),
	}

	got := Detect(users, clients, nil, []int{20})

	var ids []int
	for _, m := range got.Mismatches {
		ids = append(ids, m.ClientID)
	}
	if !reflect.DeepEqual(ids, []int{1, 3}) {
		t.Fatalf("expected mismatches for clients 1 and 3 in order, got %v", ids)
	}
	if !reflect.DeepEqual(got.Orphaned, []OrphanedLink{{ClientID: 4, WpUserID: 40}}) {
		t.Fatalf("expected client 4 orphaned, got %+v", got.Orphaned)
	}
}

func TestDetect_EmptyInputsGiveEmptyMismatches(t *testing.T) {
	got := Detect(nil, nil, nil, nil)
	if got.Mismatches == nil || len(got.Mismatches) != 0 {
		t.Fatalf("expected an empty, non-nil slice, got %#v", got.Mismatches)
	}
}

func TestDetect_LinkSuggestions(t *testing.T) {
	linked := []ClientRecord{rec(1, 10, "Al", "Roy", "al@example.com", "1", "X")}
	unlinked := []ClientRecord{
		rec(5, 0, "Eve", "Roy", "Eve@Example.com ", "1", "X"),
		rec(6, 0, "Fay", "Roy", "shared@example.com", "1", "X"),
		rec(7, 0, "Gus", "Roy", "al@example.com", "1", "X"),
		rec(8, 0, "Hal", "Roy", "staff@example.com", "1", "X"),
		rec(9, 0, "Ivy", "Roy", "", "1", "X"),
	}
	users := []UserRecord{
		user(10, "Al", "Roy", "al@example.com", "1", "X"),
		user(50, "Eve", "Roy", "eve@example.com", "1", "X"),
		user(60, "Fay", "Roy", "shared@example.com", "1", "X"),
		user(61, "Fay", "Roy", "SHARED@example.com", "1", "X"),
		user(80, "Hal", "Roy", "staff@example.com", "1", "X"),
	}

	got := Detect(users, linked, unlinked, []int{80})

	want := []LinkCandidate{
		{ClientID: 5, Email: "Eve@Example.com ", SuggestedUserID: 50},
		{ClientID: 6, Email: "shared@example.com"},
		{ClientID: 7, Email: "al@example.com"},
		{ClientID: 8, Email: "staff@example.com"},
		{ClientID: 9, Email: ""},
	}
	if !reflect.DeepEqual(got.Unlinked, want) {
		t.Fatalf("expected %+v, got %+v", want, got.Unlinked)
	}
}
