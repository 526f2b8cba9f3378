package types

import (
	"time"
)

// Config represents the complete configuration for Citrus
type Config struct {
	Library LibraryConfig `json:"library" mapstructure:"library"`
	Store   StoreConfig   `json:"store" mapstructure:"store"`
	Remote  RemoteConfig  `json:"remote" mapstructure:"remote"`
	API     APIConfig     `json:"api" mapstructure:"api"`
	Scanner ScannerConfig `json:"scanner" mapstructure:"scanner"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// LibraryConfig controls the library state manager
type LibraryConfig struct {
	ReconcileOnActivate bool   `json:"reconcile_on_activate" mapstructure:"reconcile_on_activate"`
	ReconcileTimeout    string `json:"reconcile_timeout" mapstructure:"reconcile_timeout"` // Go duration, e.g. "10s"
	BlobDir             string `json:"blob_dir" mapstructure:"blob_dir"`
}

// StoreConfig selects and configures the persistent key-value store
type StoreConfig struct {
	Driver   string `json:"driver" mapstructure:"driver"` // "duckdb", "bolt", "s3" or "memory"
	DBPath   string `json:"db_path" mapstructure:"db_path"`
	S3Bucket string `json:"s3_bucket" mapstructure:"s3_bucket"`
	S3Prefix string `json:"s3_prefix" mapstructure:"s3_prefix"`
	S3Region string `json:"s3_region" mapstructure:"s3_region"`
	S3URL    string `json:"s3_endpoint" mapstructure:"s3_endpoint"`

	// Static credentials; when empty the default AWS chain is used
	S3AccessKey string `json:"s3_access_key,omitempty" mapstructure:"s3_access_key"`
	S3SecretKey string `json:"s3_secret_key,omitempty" mapstructure:"s3_secret_key"`
}

// RemoteConfig points at the scan/storage service
type RemoteConfig struct {
	BaseURL        string `json:"base_url" mapstructure:"base_url"`
	RequestTimeout string `json:"request_timeout" mapstructure:"request_timeout"`
}

// APIConfig represents the HTTP API configuration
type APIConfig struct {
	Host           string   `json:"host" mapstructure:"host"`
	Port           int      `json:"port" mapstructure:"port"`
	AllowedOrigins []string `json:"allowed_origins" mapstructure:"allowed_origins"`
}

// ScannerConfig configures the scan/storage service
type ScannerConfig struct {
	Host       string `json:"host" mapstructure:"host"`
	Port       int    `json:"port" mapstructure:"port"`
	StorageDir string `json:"storage_dir" mapstructure:"storage_dir"`
	PageWidth  int    `json:"page_width" mapstructure:"page_width"`
	PageHeight int    `json:"page_height" mapstructure:"page_height"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	Format     string `json:"format" mapstructure:"format"` // "json" or "console"
	OutputPath string `json:"output_path" mapstructure:"output_path"`
}

// Origin tags where a library entry came from
type Origin string

const (
	OriginSeed          Origin = "seed"
	OriginCamera        Origin = "camera"
	OriginExplorer      Origin = "explorer"
	OriginRemoteStorage Origin = "remote_storage"
	OriginRemoteScan    Origin = "remote_scan"
)

// FileEntry is a single library item.
// The boolean flags mirror Origin and are kept so the persisted form stays
// readable by older clients of the same store.
type FileEntry struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Path          string    `json:"path"`
	Folder        string    `json:"folder"`
	Origin        Origin    `json:"origin,omitempty"`
	IsFromCamera  bool      `json:"isFromCamera,omitempty"`
	IsFromStorage bool      `json:"isFromStorage,omitempty"`
	IsScanned     bool      `json:"isScanned,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitzero"`
}

// Folder is a named grouping of entries
type Folder struct {
	Name string `json:"name"`
}

// SourceKind identifies how a pending upload entered the app
type SourceKind string

const (
	SourceCamera   SourceKind = "camera"
	SourceExplorer SourceKind = "explorer"
)

// PendingUpload is held between selection/capture and the naming prompt. Never persisted.
type PendingUpload struct {
	Source        SourceKind `json:"source"`
	ContentRef    string     `json:"content_ref"`
	SuggestedName string     `json:"suggested_name"`
	OriginalName  string     `json:"original_name,omitempty"`
}

// RemoteFile is one file reported by the remote lister
type RemoteFile struct {
	Filename string `json:"filename"`
	Path     string `json:"path,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Exists   bool   `json:"exists,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Snapshot is the remote lister's response
type Snapshot struct {
	ProcessedDir   string       `json:"processed_dir,omitempty"`
	UploadsDir     string       `json:"uploads_dir,omitempty"`
	StorageDir     string       `json:"storage_dir,omitempty"`
	StorageFiles   []RemoteFile `json:"storage_files"`
	ProcessedFiles []RemoteFile `json:"processed_files"`
	UploadsFiles   []string     `json:"uploads_files"`
}

// ScanResult is the scan service's response
type ScanResult struct {
	Success    bool   `json:"success"`
	Filename   string `json:"filename"`
	PDFURL     string `json:"pdf_url,omitempty"`
	StorageURL string `json:"storage_url,omitempty"`
	DirectURL  string `json:"direct_url,omitempty"`
	FilePath   string `json:"file_path,omitempty"`
}

// View is the filtered library view for the current folder and query
type View struct {
	Folder string      `json:"folder"`
	Query  string      `json:"query"`
	Files  []FileEntry `json:"files"`
	Empty  bool        `json:"empty"`
}

// APIResponse represents a generic API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Well-known names
const (
	RootFolder      = "Root"
	DefaultFileName = "fakefile.png"
	DefaultFilePath = "./images/fakefile.png"
)

// Persistent store keys
const (
	KeyLibraryFiles = "libraryFiles"
	KeyFolders      = "folders"
)

// Store driver names
const (
	DriverDuckDB = "duckdb"
	DriverBolt   = "bolt"
	DriverS3     = "s3"
	DriverMemory = "memory"
)
