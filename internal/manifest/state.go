package manifest

type projectDeclaration struct {
	name       string
	path       string
	remoteName string
	removed    bool
}

type resolutionState struct {
	remotes       map[string]string
	defaultRemote string
	projects      []projectDeclaration
	projectIndex  map[string]int
}

func newResolutionState() *resolutionState {
	return &resolutionState{
		remotes:      make(map[string]string),
		projectIndex: make(map[string]int),
	}
}

// declare records a project, replacing a live declaration with the same name in place.
// It reports whether an earlier declaration was replaced.
func (state *resolutionState) declare(declaration projectDeclaration) bool {
	if existingIndex, exists := state.projectIndex[declaration.name]; exists {
		state.projects[existingIndex] = declaration
		return true
	}
	state.projectIndex[declaration.name] = len(state.projects)
	state.projects = append(state.projects, declaration)
	return false
}

func (state *resolutionState) remove(name string) bool {
	existingIndex, exists := state.projectIndex[name]
	if !exists {
		return false
	}
	state.projects[existingIndex].removed = true
	delete(state.projectIndex, name)
	return true
}
