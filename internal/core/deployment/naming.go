package deployment

// =============================================================================
// Resource Naming Functions
// =============================================================================

// ContainerName generates the engine-wide container name for a project.
// Pattern: {owner}-{project}. Owner names carry no hyphen, so distinct
// validated pairs never share a name.
//
// Example:
//
//	ContainerName("alice", "blog") // returns "alice-blog"
func ContainerName(owner, project string) string {
	return owner + "-" + project
}

// LatestImage returns the reference of the current image for a container.
//
// Example:
//
//	LatestImage("alice-blog") // returns {alice-blog latest}
func LatestImage(containerName string) ImageRef {
	return ImageRef{Name: containerName, Tag: TagLatest}
}

// OldImage returns the reference of the rollback image for a container.
func OldImage(containerName string) ImageRef {
	return ImageRef{Name: containerName, Tag: TagOld}
}

// Hostname returns the public hostname routed to a container.
//
// Example:
//
//	Hostname("alice-blog", "example.org") // returns "alice-blog.example.org"
func Hostname(containerName, baseDomain string) string {
	return containerName + "." + baseDomain
}
