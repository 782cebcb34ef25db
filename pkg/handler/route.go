package handler

// Route type
type Route string

const (
	// RouteResolveLink resolve a single link
	RouteResolveLink Route = "resolveLink"
	// RouteResolveLinks resolve many links at once, to keep it fast
	RouteResolveLinks Route = "resolveLinks"
	// RouteMatchPath find the site map entry of a request path
	RouteMatchPath Route = "matchPath"
	// RouteGetSiteMap get the whole site map
	RouteGetSiteMap Route = "getSiteMap"
	// RouteUpdate update site map
	RouteUpdate Route = "update"
)
