package models

// AppCategory affects which intents and settings schema apply to an
// application's assignments.
type AppCategory string

const (
	CategoryStore          AppCategory = "store"
	CategoryLineOfBusiness AppCategory = "lineOfBusiness"
	CategoryWebLink        AppCategory = "webLink"
	CategoryBuiltIn        AppCategory = "builtIn"
)

// Application is a read-only reference to a remotely managed app,
// together with its already-fetched assignment list.
type Application struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"displayName"`
	Category    AppCategory  `json:"category"`
	Assignments []Assignment `json:"assignments,omitempty"`
}

func (a Application) PK() string {
	return a.ID
}

// TargetGroup is a read-only reference to a group of managed endpoints,
// or one of the built-in universal scopes.
type TargetGroup struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"displayName"`
	Kind        TargetKind `json:"kind"`
	MemberCount int        `json:"memberCount"`
}

func (g TargetGroup) Target() Target {
	t := Target{Kind: g.Kind}
	if !g.Kind.BuiltIn() {
		t.Kind = TargetKindGroup
		t.GroupID = g.ID
		t.GroupName = g.DisplayName
	}
	return t
}

// FilterInfo is display metadata for an assignment filter. It is not
// required for correctness, only for rendering filter names.
type FilterInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Platform    string `json:"platform,omitempty"`
}
