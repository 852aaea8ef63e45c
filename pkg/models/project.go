package models

import "strings"

// Project is a watched working directory.
type Project struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
}

// SessionsChannel returns the notification channel for closed sessions of
// the project with the given id.
func SessionsChannel(projectID string) string {
	return "project://" + projectID + "/sessions"
}

// ProjectFromChannel returns the project id of a sessions channel.
func ProjectFromChannel(channel string) (string, bool) {
	rest, ok := strings.CutPrefix(channel, "project://")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/sessions")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
