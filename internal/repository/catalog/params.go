package catalog

type SetItemParams struct {
	Item Item
}

type RandomCandidateParams struct {
	ExcludeId       string
	ExcludeCategory string
}

type SetBumpersParams struct {
	Flavor  string
	Bumpers []Bumper
}

type SetShowParams struct {
	ShowId string
	Steps  []ShowStep
}

type SetDenyListParams struct {
	Ids        []string
	Categories []string
}
