package validation

import (
	"fmt"
	"regexp"
)

const (
	// MaxOwnerLength keeps "{owner}-{project}" within a 63 byte DNS label.
	MaxOwnerLength = 31

	// MaxProjectLength is the longest accepted project name.
	MaxProjectLength = 31
)

var (
	ownerPattern   = regexp.MustCompile(`^[a-z0-9]+$`)
	projectPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
)

// =============================================================================
// Name Validation Functions
// =============================================================================

// ValidateOwnerName checks an owner name against the naming rules.
// Returns an empty message if the name is valid.
//
// Example:
//
//	ValidateOwnerName("alice")   // returns ""
//	ValidateOwnerName("a-b")     // returns "owner must contain only lowercase letters and digits"
func ValidateOwnerName(name string) string {
	switch {
	case name == "":
		return "owner is required"
	case len(name) > MaxOwnerLength:
		return fmt.Sprintf("owner must be at most %d characters", MaxOwnerLength)
	case !ownerPattern.MatchString(name):
		return "owner must contain only lowercase letters and digits"
	}
	return ""
}

// ValidateProjectName checks a project name against the naming rules.
// Returns an empty message if the name is valid.
func ValidateProjectName(name string) string {
	switch {
	case name == "":
		return "project is required"
	case len(name) > MaxProjectLength:
		return fmt.Sprintf("project must be at most %d characters", MaxProjectLength)
	case !projectPattern.MatchString(name):
		return "project must contain only lowercase letters, digits and inner hyphens"
	}
	return ""
}

// ValidateTargetNames validates an owner and project pair.
// Returns the field name and error message if validation fails.
// Returns empty strings if both names are valid.
//
// Example:
//
//	field, msg := ValidateTargetNames("alice", "blog")
//	if field != "" {
//	    // Handle validation error
//	}
func ValidateTargetNames(owner, project string) (field, message string) {
	if msg := ValidateOwnerName(owner); msg != "" {
		return "owner", msg
	}
	if msg := ValidateProjectName(project); msg != "" {
		return "project", msg
	}
	return "", ""
}
