package model

// LinkType describes the origin of a discovered link.
type LinkType string

const (
	// LinkTypeHTML marks a link found in an HTML document.
	LinkTypeHTML LinkType = "html"

	// LinkTypeRedirect marks a link produced by a redirect response.
	// Redirect targets re-enter the frontier rather than being followed
	// inline, so depth accounting and the pre-fetch gate apply to them.
	LinkTypeRedirect LinkType = "redirect"

	// LinkTypeHook marks a link injected by the extension contract.
	LinkTypeHook LinkType = "hook"

	// LinkTypeListing marks a link found in an FTP directory listing.
	LinkTypeListing LinkType = "listing"
)

// DiscoveredLink is a candidate new locator found while processing a
// fetched resource. The frontier converts accepted links into Records.
type DiscoveredLink struct {
	// Locator is the canonicalized target.
	Locator Locator

	// Inline is true for embedded resources (images, stylesheets,
	// scripts) and false for navigational links. Inline resources are
	// exempt from the navigational level limit by one extra level.
	Inline bool

	// Type records how the link was found.
	Type LinkType
}
