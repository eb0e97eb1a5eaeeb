package rules

import (
	"reflect"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"required", []string{"required"}},
		{"required|max:255", []string{"required", "max:255"}},
		{" required | email ", []string{"required", "email"}},
		{"regex:/^(a|b)$/i|required", []string{"regex:/^(a|b)$/i", "required"}},
		{"required|not_regex:#x|y#", []string{"required", "not_regex:#x|y#"}},
		{"regex:^a|b$", []string{"regex:^a", "b$"}},
		{"||", nil},
	}
	for _, tt := range tests {
		got := Split(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Split(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		keyword string
		params  []string
		shape   Shape
	}{
		{"required", "required", nil, ShapeBasic},
		{"exists:users,id", "exists", []string{"users", "id"}, ShapeExists},
		{"unique:posts", "unique", []string{"posts"}, ShapeUnique},
		{"in:a, b,c", "in", []string{"a", "b", "c"}, ShapeIn},
		{"not_in:x", "not_in", []string{"x"}, ShapeIn},
		{"regex:/^a,b$/", "regex", []string{"/^a,b$/"}, ShapePattern},
		{"between:1,10", "between", []string{"1", "10"}, ShapeSize},
		{"required_if:status,published", "required_if", []string{"status", "published"}, ShapeConditional},
		{"Max:3", "max", []string{"3"}, ShapeSize},
		{"frobnicate:1", "frobnicate", []string{"1"}, ShapeUnknown},
	}
	for _, tt := range tests {
		r := Parse(tt.in)
		if r.Keyword != tt.keyword || !reflect.DeepEqual(r.Params, tt.params) || r.Shape != tt.shape {
			t.Errorf("Parse(%q) = %q %q %s; want %q %q %s", tt.in, r.Keyword, r.Params, r.Shape, tt.keyword, tt.params, tt.shape)
		}
	}
}

func TestTableAndColumn(t *testing.T) {
	tests := []struct {
		in     string
		table  string
		column string
	}{
		{"exists:users,id", "users", "id"},
		{"exists:users", "users", "email"},
		{"unique:mysql.users,email_address", "users", "email_address"},
		{`exists:App\Models\User,id`, `App\Models\User`, "id"},
		{"unique:users,NULL,5", "users", "email"},
		{"exists", "", "email"},
	}
	for _, tt := range tests {
		r := Parse(tt.in)
		if got := r.Table(); got != tt.table {
			t.Errorf("Parse(%q).Table() = %q, want %q", tt.in, got, tt.table)
		}
		if got := r.Column("email"); got != tt.column {
			t.Errorf("Parse(%q).Column() = %q, want %q", tt.in, got, tt.column)
		}
	}
}

func TestReferencedFields(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"required_if:status,published", []string{"status"}},
		{"required_with:a,b", []string{"a", "b"}},
		{"same:password", []string{"password"}},
		{"gt:10", nil},
		{"gt:min_price", []string{"min_price"}},
		{"required", nil},
	}
	for _, tt := range tests {
		got := Parse(tt.in).ReferencedFields()
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ReferencedFields(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCheckSize(t *testing.T) {
	ok := []string{"max:255", "min:0", "between:1,5", "digits:4", "decimal:2", "decimal:2,4", "size:1.5"}
	for _, s := range ok {
		if err := Parse(s).CheckSize(); err != nil {
			t.Errorf("CheckSize(%q) = %v, want nil", s, err)
		}
	}
	bad := []string{"max", "max:abc", "between:1", "between:1,x", "size:1,2"}
	for _, s := range bad {
		if err := Parse(s).CheckSize(); err == nil {
			t.Errorf("CheckSize(%q) = nil, want error", s)
		}
	}
}

func TestCompile(t *testing.T) {
	re, err := Parse("regex:/^[a-z]+$/i").Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !re.MatchString("ABC") {
		t.Error("case-insensitive flag not applied")
	}

	re, err = Parse("regex:^[0-9]{3}$").Compile()
	if err != nil {
		t.Fatalf("Compile undelimited: %v", err)
	}
	if !re.MatchString("123") {
		t.Error("undelimited pattern did not match")
	}

	for _, s := range []string{"regex:/[a-/", "regex:/(?<=a)b/", "regex:/a/x", "regex:", "required"} {
		if _, err := Parse(s).Compile(); err == nil {
			t.Errorf("Compile(%q) = nil error, want error", s)
		}
	}
}

func TestParseAll(t *testing.T) {
	got := ParseAll([]string{"required|max:3", "email"})
	if len(got) != 3 {
		t.Fatalf("ParseAll returned %d rules, want 3", len(got))
	}
	if got[2].Keyword != "email" {
		t.Errorf("third rule = %q, want email", got[2].Keyword)
	}
}
