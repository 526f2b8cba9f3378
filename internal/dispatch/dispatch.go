// Package dispatch picks the viewer for a library entry.
package dispatch

import (
	"github.com/Project-Sylos/Citrus/internal/types"
	"github.com/Project-Sylos/Citrus/internal/utils"
)

// Viewer is one of the viewer experiences a file can open in
type Viewer string

const (
	ViewerMarkup           Viewer = "markup"
	ViewerCameraAnnotation Viewer = "camera_annotation"
	ViewerUploaded         Viewer = "uploaded"
)

// Kind is how the uploaded-file viewer renders content
type Kind string

const (
	KindImage       Kind = "image"
	KindPDF         Kind = "pdf"
	KindUnsupported Kind = "unsupported"
)

// Route is the hand-off descriptor given to a viewer
type Route struct {
	Viewer Viewer `json:"viewer"`
	Render Kind   `json:"render"`
	Name   string `json:"name"`
	Path   string `json:"path"`
}

// Link is a client-side download descriptor
type Link struct {
	Href     string `json:"href"`
	Filename string `json:"filename"`
}

var imageExts = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"bmp":  true,
}

// Dispatch maps an entry to exactly one viewer. First matching rule wins:
// the sentinel default file, then camera captures, then scanned output,
// then everything else.
func Dispatch(f types.FileEntry) Viewer {
	if f.Name == types.DefaultFileName {
		return ViewerMarkup
	}

	switch originOf(f) {
	case types.OriginCamera:
		return ViewerCameraAnnotation
	case types.OriginRemoteScan, types.OriginSeed:
		return ViewerMarkup
	case types.OriginExplorer, types.OriginRemoteStorage:
		return ViewerUploaded
	}
	return ViewerUploaded
}

// originOf resolves the effective origin. The flags take precedence because a
// by-name merge can mark an existing entry scanned without changing its origin.
func originOf(f types.FileEntry) types.Origin {
	switch {
	case f.IsFromCamera:
		return types.OriginCamera
	case f.IsScanned:
		return types.OriginRemoteScan
	case f.Origin != "":
		return f.Origin
	case f.IsFromStorage:
		return types.OriginRemoteStorage
	default:
		return types.OriginExplorer
	}
}

// RenderKind picks how the uploaded-file viewer shows a file, by extension
func RenderKind(name string) Kind {
	ext := utils.Ext(name)
	switch {
	case imageExts[ext]:
		return KindImage
	case ext == "pdf":
		return KindPDF
	default:
		return KindUnsupported
	}
}

// RouteFor builds the viewer hand-off for an entry
func RouteFor(f types.FileEntry) Route {
	return Route{
		Viewer: Dispatch(f),
		Render: RenderKind(f.Name),
		Name:   f.Name,
		Path:   f.Path,
	}
}

// DownloadLink builds the download descriptor. No network round-trip is involved.
func DownloadLink(f types.FileEntry) Link {
	return Link{Href: f.Path, Filename: f.Name}
}
