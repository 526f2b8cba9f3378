package models

import "github.com/Project-Sylos/Citrus/internal/types"

// AddFilesRequest represents a batch of candidate entries to merge into the library
type AddFilesRequest struct {
	Files []types.FileEntry `json:"files"`
}

// RenameFileRequest represents the request to rename an entry
type RenameFileRequest struct {
	Name string `json:"name"`
}

// MoveFileRequest represents the request to move an entry to another folder
type MoveFileRequest struct {
	Folder string `json:"folder"`
}

// CreateFolderRequest represents the request to create a new folder
type CreateFolderRequest struct {
	Name string `json:"name"`
}

// CameraCaptureRequest carries a capture encoded as a data URL
type CameraCaptureRequest struct {
	DataURL string `json:"data_url"`
}

// ConfirmUploadRequest names the pending upload. A blank name uses the suggested one.
type ConfirmUploadRequest struct {
	Name string `json:"name"`
}

// ScanUploadRequest sends the pending upload to the scan service
type ScanUploadRequest struct {
	OutputName string `json:"output_name"`
}

// ChangedResponse reports whether an operation modified the library
type ChangedResponse struct {
	Changed bool `json:"changed"`
}
