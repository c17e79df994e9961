package fqn

import "testing"

func TestModuleName(t *testing.T) {
	cases := []struct {
		root, file, want string
	}{
		{"/r", "/r/pkg/sub/__init__.py", "pkg.sub"},
		{"/r", "/r/pkg/x.py", "pkg.x"},
		{"/r", "/r/__init__.py", ""},
		{"/r", "/r/main.py", "main"},
		{"/r", "/r/a/b/c.py", "a.b.c"},
	}
	for _, c := range cases {
		got := ModuleName(c.root, c.file)
		if got != c.want {
			t.Errorf("ModuleName(%q, %q) = %q, want %q", c.root, c.file, got, c.want)
		}
	}
}

func TestQualname(t *testing.T) {
	cases := []struct {
		module string
		scope  []string
		name   string
		want   string
	}{
		{"pkg.x", nil, "foo", "pkg.x.foo"},
		{"pkg.x", []string{"MyClass"}, "method", "pkg.x.MyClass.method"},
		{"pkg.x", []string{"outer"}, "inner", "pkg.x.outer.inner"},
		{"", nil, "foo", "foo"},
	}
	for _, c := range cases {
		got := Qualname(c.module, c.scope, c.name)
		if got != c.want {
			t.Errorf("Qualname(%q, %v, %q) = %q, want %q", c.module, c.scope, c.name, got, c.want)
		}
	}
}
