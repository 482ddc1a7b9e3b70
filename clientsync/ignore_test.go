package clientsync

import (
	"reflect"
	"testing"
)

func TestFilterIgnored_NoRulesIsIdentity(t *testing.T) {
	in := []Mismatch{
		{ClientID: 1, FieldName: FieldFirstName, ValueFromClient: "Sam", ValueFromWP: "Samuel"},
		{ClientID: 2, FieldName: FieldEmail, ValueFromClient: "a@x.com", ValueFromWP: "b@x.com"},
	}
	if got := FilterIgnored(in, nil); !reflect.DeepEqual(got, in) {
		t.Fatalf("expected input unchanged, got %+v", got)
	}
}

func TestFilterIgnored_ExactMatchOnly(t *testing.T) {
	f := Mismatch{ClientID: 1, FieldName: FieldFirstName, ValueFromClient: "Sam", ValueFromWP: "Samuel"}
	a := Mismatch{ClientID: 2, FieldName: FieldFirstName, ValueFromClient: "Sam", ValueFromWP: "Sammy"}
	c := Mismatch{ClientID: 3, FieldName: FieldLastName, ValueFromClient: "Sam", ValueFromWP: "Samuel"}
	in := []Mismatch{f, a, c}

	cases := []struct {
		name string
		rule IgnoreRule
		want []Mismatch
	}{
		{
			name: "matching triple",
			rule: IgnoreRule{FieldName: FieldFirstName, SourceValue: "Sam", TargetValue: "Samuel"},
			want: []Mismatch{a, c},
		},
		{
			name: "values swapped",
			rule: IgnoreRule{FieldName: FieldFirstName, SourceValue: "Samuel", TargetValue: "Sam"},
			want: in,
		},
		{
			name: "trailing space",
			rule: IgnoreRule{FieldName: FieldFirstName, SourceValue: "Sam ", TargetValue: "Samuel"},
			want: in,
		},
		{
			name: "other case",
			rule: IgnoreRule{FieldName: FieldFirstName, SourceValue: "sam", TargetValue: "Samuel"},
			want: in,
		},
	}

	for _, tc := range cases {
		got := FilterIgnored(in, []IgnoreRule{tc.rule})
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: expected %+v, got %+v", tc.name, tc.want, got)
		}
	}
}
