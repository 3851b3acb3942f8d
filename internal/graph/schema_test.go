package graph

import "testing"

func TestIDsAreDeterministic(t *testing.T) {
	if FileID("r", "a/b.py") != FileID("r", "a/b.py") {
		t.Fatal("FileID must be stable")
	}
	if FileID("r", "a/b.py") == FileID("r2", "a/b.py") {
		t.Fatal("FileID must vary by repository")
	}
	if DeclarationID("r", "a.py", "f", 1) == DeclarationID("r", "a.py", "f", 2) {
		t.Fatal("DeclarationID must vary by start line")
	}
	if PlaceholderID("r", "a.py", 3, 4, "f") == PlaceholderID("r", "a.py", 3, 5, "f") {
		t.Fatal("PlaceholderID must vary by column")
	}
	if FileID("r", "a.py") == DeclarationID("r", "a.py", "", 0) {
		t.Fatal("node ids must not collide across types")
	}
}

func TestModuleOfPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"app/main.py", "app.main"},
		{"pkg/__init__.py", "pkg"},
		{"src/lib/index.ts", "src.lib"},
		{"src/store/mod.rs", "src.store"},
		{"cmd/tool/main.go", "cmd.tool.main"},
		{"top.py", "top"},
	}
	for _, c := range cases {
		if got := ModuleOfPath(c.path); got != c.want {
			t.Errorf("ModuleOfPath(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestShardOf(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"process", "p"},
		{"Process", "p"},
		{"_private", "#"},
		{"你好", "#"},
		{"", "#"},
	}
	for _, c := range cases {
		if got := ShardOf(c.name); got != c.want {
			t.Errorf("ShardOf(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}
