package responses

import "time"

// Link - a resolved link
type Link struct {
	// rendered url, relative to the host unless it had to be fully qualified
	URL string `json:"url"`
	// visible path relative to the mount
	Path string `json:"path"`
	// alias of the mount the link points to
	Mount string `json:"mount"`
	// id of the matched site map entry
	EntryID            string `json:"entryId,omitempty"`
	RepresentsDocument bool   `json:"representsDocument"`
	RepresentsFolder   bool   `json:"representsFolder"`
	RepresentsIndex    bool   `json:"representsIndex"`
	// nothing matched, url points to the not found page
	NotFound bool              `json:"notFound"`
	Params   map[string]string `json:"params,omitempty"`
}

// Match - the site map entry of a request path
type Match struct {
	Found   bool   `json:"found"`
	Mount   string `json:"mount"`
	EntryID string `json:"entryId,omitempty"`
	// site map path template of the entry, e.g. news/*/*.html
	Template string `json:"template,omitempty"`
	// content path of the entry with the captured values filled in
	ContentPath string   `json:"contentPath,omitempty"`
	Params      []string `json:"params,omitempty"`
}

// Stats - numbers of an update
type Stats struct {
	NumberOfMounts    int `json:"numberOfMounts"`
	NumberOfEntries   int `json:"numberOfEntries"`
	NumberOfTemplates int `json:"numberOfTemplates"`
	NumberOfWarnings  int `json:"numberOfWarnings"`
	// seconds
	RepoRuntime float64 `json:"repoRuntime"`
	// seconds
	OwnRuntime float64 `json:"ownRuntime"`
}

// Update - information about an update
type Update struct {
	// did it work or not
	Success bool `json:"success"`
	// this is for humans
	ErrorMessage string `json:"errorMessage"`
	Stats        Stats  `json:"stats"`
}

// SiteMapUpdated - event published after a new site map went live
type SiteMapUpdated struct {
	RunID string    `json:"runId"`
	Time  time.Time `json:"time"`
	// sorted mount aliases
	Mounts []string `json:"mounts"`
	Stats  Stats    `json:"stats"`
	// url the site map was loaded from
	Source string `json:"source"`
	// poll version, empty unless polling
	Version string `json:"version,omitempty"`
}
