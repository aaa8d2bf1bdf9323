package rbac

import "testing"

func TestDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)

	cases := []struct {
		role, perm string
		want       bool
	}{
		{"teacher", "tree:view", true},
		{"teacher", "tree:edit", false},
		{"teacher", "eval:score", true},
		{"teacher", "eval:delete", false},
		{"teacher", "roster:manage", true},
		{"teacher", "users:bulk_upsert", false},
		{"admin", "tree:edit", true},
		{"admin", "users:bulk_upsert", true},
		{"admin", "anything:at_all", true},
		{"", "tree:view", false},
		{"stranger", "tree:view", false},
	}
	for _, tc := range cases {
		if got := c.Has(tc.role, tc.perm); got != tc.want {
			t.Fatalf("Has(%q,%q)=%v want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestWildcardPrefix(t *testing.T) {
	c := NewChecker(map[string][]string{"aide": {"roster:*"}})
	if !c.Has("aide", "roster:view") || !c.Has("aide", "roster:manage") {
		t.Fatal("prefix wildcard should match roster permissions")
	}
	if c.Has("aide", "tree:view") {
		t.Fatal("prefix wildcard must not leak outside its prefix")
	}
	if !c.Any("aide", "tree:view", "roster:view") {
		t.Fatal("Any should accept when one permission matches")
	}
}
