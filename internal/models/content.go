package models

import "github.com/Spok95/ada-portal/internal/video"

type ClassSession struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	VideoURL    string `json:"videoUrl,omitempty"`
	Duration    string `json:"duration"`
}

// VideoID всегда вычисляется из VideoURL и нигде не хранится.
func (c ClassSession) VideoID() string {
	id, _ := video.ExtractID(c.VideoURL)
	return id
}

type Module struct {
	ID      string         `json:"id"`
	Title   string         `json:"title"`
	Classes []ClassSession `json:"classes"`
}

func TotalClasses(modules []Module) int {
	n := 0
	for _, m := range modules {
		n += len(m.Classes)
	}
	return n
}

func FindClass(modules []Module, classID string) (ClassSession, bool) {
	for _, m := range modules {
		for _, c := range m.Classes {
			if c.ID == classID {
				return c, true
			}
		}
	}
	return ClassSession{}, false
}
