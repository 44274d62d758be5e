package domain

import "time"

const TaskDownloadDSYM = "download_dsym"

type Task struct {
	ID         string
	Name       string
	Project    ProjectID
	Build      Build
	URL        string
	EnqueuedAt time.Time
}
