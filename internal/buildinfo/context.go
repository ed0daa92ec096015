// Package buildinfo carries build-time metadata separate from user configuration.
package buildinfo

import "fmt"

// UnknownValue is reported for metadata the build did not inject
const UnknownValue = "unknown"

// BuildInfo provides access to build-time metadata.
type BuildInfo interface {
	GetVersion() string
	GetBuildDate() string
	GetNodeID() string
}

// Context contains build-time metadata that is not user-configurable.
// It is injected at startup from -ldflags.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string

	// NodeID identifies the running node in logs and error reports
	NodeID string
}

// NewContext creates a build context
func NewContext(version, buildDate, nodeID string) *Context {
	return &Context{Version: version, BuildDate: buildDate, NodeID: nodeID}
}

// GetVersion implements BuildInfo.GetVersion
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate implements BuildInfo.GetBuildDate
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// GetNodeID implements BuildInfo.GetNodeID
func (c *Context) GetNodeID() string {
	if c == nil || c.NodeID == "" {
		return UnknownValue
	}
	return c.NodeID
}

// Release is the Sentry release name, wildlife-go@<version>
func (c *Context) Release() string {
	return "wildlife-go@" + c.GetVersion()
}

// String renders the version line printed by the version command
func (c *Context) String() string {
	return fmt.Sprintf("wildlife-go %s (built %s)", c.GetVersion(), c.GetBuildDate())
}

var _ BuildInfo = (*Context)(nil)
