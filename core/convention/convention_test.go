package convention

import "testing"

func TestPluralize(t *testing.T) {
	tests := []struct {
		singular string
		plural   string
	}{
		{"", ""},
		{"user", "users"},
		{"post", "posts"},
		{"bus", "buses"},
		{"class", "classes"},
		{"box", "boxes"},
		{"church", "churches"},
		{"category", "categories"},
		{"day", "days"},
		{"leaf", "leaves"},
		{"knife", "knives"},
		{"person", "people"},
		{"Person", "People"},
		{"status", "statuses"},
		{"news", "news"},
		{"blog_post", "blog_posts"},
		{"order_item", "order_items"},
	}

	for _, tt := range tests {
		t.Run(tt.singular, func(t *testing.T) {
			if got := Pluralize(tt.singular); got != tt.plural {
				t.Errorf("Pluralize(%q) = %q, want %q", tt.singular, got, tt.plural)
			}
		})
	}
}

func TestSingularize(t *testing.T) {
	tests := []struct {
		plural   string
		singular string
	}{
		{"users", "user"},
		{"buses", "bus"},
		{"categories", "category"},
		{"leaves", "leaf"},
		{"people", "person"},
		{"statuses", "status"},
		{"class", "class"},
		{"blog_posts", "blog_post"},
	}

	for _, tt := range tests {
		t.Run(tt.plural, func(t *testing.T) {
			if got := Singularize(tt.plural); got != tt.singular {
				t.Errorf("Singularize(%q) = %q, want %q", tt.plural, got, tt.singular)
			}
		})
	}
}

func TestSnake(t *testing.T) {
	tests := map[string]string{
		"BlogPost":    "blog_post",
		"userID":      "user_id",
		"HTMLParser":  "html_parser",
		"author-name": "author_name",
		"already_ok":  "already_ok",
		"Post":        "post",
	}
	for in, want := range tests {
		if got := Snake(in); got != want {
			t.Errorf("Snake(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStudlyAndCamel(t *testing.T) {
	if got := Studly("post_tags"); got != "PostTags" {
		t.Errorf("Studly = %q", got)
	}
	if got := Camel("foreign_key"); got != "foreignKey" {
		t.Errorf("Camel = %q", got)
	}
	if got := Camel("with_timestamps"); got != "withTimestamps" {
		t.Errorf("Camel = %q", got)
	}
}

func TestBaseNameAndNamespace(t *testing.T) {
	tests := []struct {
		in, base, ns string
	}{
		{`App\Models\User`, "User", `App\Models`},
		{"app.models.Post", "Post", "app.models"},
		{"Comment", "Comment", ""},
		{" Tag ", "Tag", ""},
	}
	for _, tt := range tests {
		if got := BaseName(tt.in); got != tt.base {
			t.Errorf("BaseName(%q) = %q, want %q", tt.in, got, tt.base)
		}
		if got := Namespace(tt.in); got != tt.ns {
			t.Errorf("Namespace(%q) = %q, want %q", tt.in, got, tt.ns)
		}
	}
	if ModelKey(`App\Models\User`) != ModelKey("user") {
		t.Error("ModelKey should ignore namespace and case")
	}
}

func TestTableAndKeys(t *testing.T) {
	if got := Table("BlogPost"); got != "blog_posts" {
		t.Errorf("Table = %q, want blog_posts", got)
	}
	if got := Table(`App\Models\Category`); got != "categories" {
		t.Errorf("Table = %q, want categories", got)
	}
	if got := ForeignKey("author"); got != "author_id" {
		t.Errorf("ForeignKey = %q", got)
	}
	if got := PivotTable("Tag", "Post"); got != "post_tag" {
		t.Errorf("PivotTable = %q, want post_tag", got)
	}
	id, typ := MorphColumns("commentable")
	if id != "commentable_id" || typ != "commentable_type" {
		t.Errorf("MorphColumns = %q, %q", id, typ)
	}
}
