package domain

// ProgressStatus is the status carried by every progress event.
type ProgressStatus string

const (
	StatusStarting    ProgressStatus = "starting"
	StatusDownloading ProgressStatus = "downloading"
	StatusMerging     ProgressStatus = "merging"
	StatusProcessing  ProgressStatus = "processing"
	StatusCompleted   ProgressStatus = "completed"
	StatusReady       ProgressStatus = "ready"
	StatusCancelled   ProgressStatus = "cancelled"
	StatusError       ProgressStatus = "error"
	StatusZipping     ProgressStatus = "zipping"
	StatusFinished    ProgressStatus = "finished"
)

// IsTerminal reports whether no further events follow this status.
func (s ProgressStatus) IsTerminal() bool {
	switch s {
	case StatusReady, StatusCancelled, StatusError, StatusFinished:
		return true
	default:
		return false
	}
}

// Phases reported alongside StatusDownloading and friends.
const (
	PhaseVideo     = "video"
	PhaseAudio     = "audio"
	PhaseMerging   = "merging"
	PhaseFallback  = "fallback"
	PhaseStarting  = "Starting"
	PhaseItem      = "Downloading"
	PhaseCompleted = "Completed"
	PhaseError     = "Error"
	PhaseZipping   = "Zipping"
)

// ProgressSnapshot is a point-in-time event pushed to the streaming client.
type ProgressSnapshot struct {
	Status       ProgressStatus `json:"status"`
	Phase        string         `json:"phase,omitempty"`
	Progress     float64        `json:"progress"`
	Message      string         `json:"message,omitempty"`
	Speed        string         `json:"speed,omitempty"`
	Size         string         `json:"size,omitempty"`
	ETA          string         `json:"eta,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	Filename     string         `json:"filename,omitempty"`
	CurrentVideo int            `json:"current_video,omitempty"`
	TotalVideos  int            `json:"total_videos,omitempty"`
	VideoTitle   string         `json:"video_title,omitempty"`
	ZipName      string         `json:"zip_name,omitempty"`
	RemoteURL    string         `json:"remote_url,omitempty"`
}
