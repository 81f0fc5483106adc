// Package services contains pure domain logic with no I/O or side effects.
package services

// ShouldDeploy reports whether a build on the given branch may deploy.
// Only an exact match against the designated branch deploys; an empty or
// unset branch never does. Pure function of its inputs.
func ShouldDeploy(branch, designated string) bool {
	if branch == "" || designated == "" {
		return false
	}
	return branch == designated
}
