// Copyright 2026 Chefops Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package transport

// CookbookEntry is one entry of the cookbook catalog returned by
// GET /cookbooks. The server reports the versions newest first.
type CookbookEntry struct {
	URL      string            `json:"url"`
	Versions []CookbookVersion `json:"versions"`
}

// CookbookVersion identifies a single stored version of a cookbook.
type CookbookVersion struct {
	URL     string `json:"url"`
	Version string `json:"version"`
}

// CookbookManifest is the manifest of one cookbook version as returned by
// GET /cookbooks/<name>/<version>. Only the file segments are modelled;
// metadata fields the exporter does not need are left to the raw document.
type CookbookManifest struct {
	CookbookName string         `json:"cookbook_name"`
	Name         string         `json:"name"`
	Version      string         `json:"version"`
	Attributes   []ManifestFile `json:"attributes"`
	Definitions  []ManifestFile `json:"definitions"`
	Files        []ManifestFile `json:"files"`
	Libraries    []ManifestFile `json:"libraries"`
	Providers    []ManifestFile `json:"providers"`
	Recipes      []ManifestFile `json:"recipes"`
	Resources    []ManifestFile `json:"resources"`
	RootFiles    []ManifestFile `json:"root_files"`
	Templates    []ManifestFile `json:"templates"`
	AllFiles     []ManifestFile `json:"all_files"`
}

// ManifestFile is a single downloadable file within a cookbook version.
// The URL is pre-signed by the server's storage backend and must be
// fetched without request signing.
type ManifestFile struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Checksum    string `json:"checksum"`
	Specificity string `json:"specificity"`
	URL         string `json:"url"`
}

// Segments returns the manifest's file lists in a stable order. Servers
// that report the flattened all_files form (API v2) return that list alone.
func (m CookbookManifest) Segments() [][]ManifestFile {
	if len(m.AllFiles) > 0 {
		return [][]ManifestFile{m.AllFiles}
	}
	return [][]ManifestFile{
		m.Attributes,
		m.Definitions,
		m.Files,
		m.Libraries,
		m.Providers,
		m.Recipes,
		m.Resources,
		m.RootFiles,
		m.Templates,
	}
}
