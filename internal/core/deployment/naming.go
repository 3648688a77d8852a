package deployment

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// Resource Naming Functions
// =============================================================================

// ImageTagTimeFormat is the timestamp layout embedded in image tags.
const ImageTagTimeFormat = "20060102-150405"

// normalize lowercases a name and replaces hyphens with underscores.
func normalize(appName string) string {
	return strings.ReplaceAll(strings.ToLower(appName), "-", "_")
}

// ContainerName generates the container name for a single-container app.
// Pattern: app-{name}, lowercased with hyphens replaced by underscores.
//
// Example:
//
//	ContainerName("My-App") // returns "app-my_app"
func ContainerName(appName string) string {
	return fmt.Sprintf("app-%s", normalize(appName))
}

// ProjectName generates the compose project name for a compose app.
// Pattern: milkcrate-{name}, lowercased with hyphens replaced by underscores.
//
// Example:
//
//	ProjectName("My-App") // returns "milkcrate-my_app"
func ProjectName(appName string) string {
	return fmt.Sprintf("milkcrate-%s", normalize(appName))
}

// ImageTag generates the image tag for a build at the given time.
// Pattern: milkcrate-{name}:{YYYYMMDD-HHMMSS}, name lowercased.
//
// Example:
//
//	ImageTag("MyApp", t) // returns "milkcrate-myapp:20240131-154500"
func ImageTag(appName string, at time.Time) string {
	return fmt.Sprintf("milkcrate-%s:%s", strings.ToLower(appName), at.Format(ImageTagTimeFormat))
}

// VolumeName generates the managed volume name for an app.
// Pattern: milkcrate-vol-{name}, lowercased with underscores replaced by
// hyphens. Note the direction is the opposite of container names: volume
// names stay hyphenated.
//
// Example:
//
//	VolumeName("my_app") // returns "milkcrate-vol-my-app"
func VolumeName(appName string) string {
	return fmt.Sprintf("milkcrate-vol-%s", strings.ReplaceAll(strings.ToLower(appName), "_", "-"))
}

// DerivedComposeFile is the filename written next to the original compose
// file after routing labels and network config have been merged in.
const DerivedComposeFile = "docker-compose-modified.yml"
