package profiles

import "testing"

func TestToUserFallsBackToSessionEmail(t *testing.T) {
	club := "c2"
	p := Profile{ID: "u1", Name: "Asha", Role: RoleLead, Department: "Civil Engineering", ClubID: &club}

	user := p.ToUser("asha@pec.edu")
	if user.Email != "asha@pec.edu" {
		t.Fatalf("expected fallback email, got %q", user.Email)
	}
	if user.ClubID != "c2" {
		t.Fatalf("expected club id c2, got %q", user.ClubID)
	}

	p.Email = "profile@pec.edu"
	if got := p.ToUser("asha@pec.edu").Email; got != "profile@pec.edu" {
		t.Fatalf("expected profile email to win, got %q", got)
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleFaculty, RoleLead, RoleStudent} {
		if !r.Valid() {
			t.Fatalf("expected %q to be valid", r)
		}
	}
	if Role("dean").Valid() {
		t.Fatal("expected unknown role to be invalid")
	}
}

func TestListOptionsMatches(t *testing.T) {
	p := Profile{Name: "Ravi Kumar", Email: "ravi@pec.edu", Role: RoleStudent, Department: "Computer Science"}

	cases := []struct {
		name string
		opts ListOptions
		want bool
	}{
		{"empty", ListOptions{}, true},
		{"name substring", ListOptions{Query: "kum"}, true},
		{"email substring", ListOptions{Query: "RAVI@"}, true},
		{"department mismatch", ListOptions{Department: "Civil Engineering"}, false},
		{"role mismatch", ListOptions{Role: RoleLead}, false},
		{"club mismatch", ListOptions{ClubID: "c1"}, false},
	}
	for _, tc := range cases {
		if got := tc.opts.Matches(p); got != tc.want {
			t.Fatalf("%s: Matches() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
