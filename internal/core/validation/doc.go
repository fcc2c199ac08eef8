// Package validation provides pure validation functions for tenant input.
//
// All functions are pure (no I/O, no side effects). Callers validate owner
// and project names before a deployment target is built or a project is
// registered, so that every accepted pair maps to its own container name.
//
// # Naming Rules
//
//   - Owner names: lowercase letters and digits only, at most 31 characters.
//   - Project names: lowercase letters, digits and inner hyphens, at most 31
//     characters.
//
// Owner names never contain a hyphen, so the first hyphen of a container
// name always separates the owner from the project.
//
// # Usage
//
//	if field, msg := validation.ValidateTargetNames(owner, project); field != "" {
//	    // Reject the request with msg
//	}
package validation
