package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewInstanceName returns appName with a random 4 hex character suffix so that
// concurrent deploys of the same app get distinct names.
func NewInstanceName(appName string) string {
	return appName + "_" + uuid.NewString()[:4]
}

// AppNameFromImage derives an app name from an image reference, e.g.
// "library/nginx:1.25" becomes "library_nginx_1.25".
func AppNameFromImage(image string) string {
	return strings.NewReplacer("/", "_", ":", "_").Replace(strings.TrimSpace(image))
}

type deployedAppJSON struct {
	VMDetails struct {
		UID string `json:"uid"`
	} `json:"vmdetails"`
}

// ParseDeployedAppJSON extracts the engine handle from the platform's deployed-app document.
func ParseDeployedAppJSON(raw string) (string, error) {
	var doc deployedAppJSON
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", fmt.Errorf("failed to parse deployed app json: %w", err)
	}
	if doc.VMDetails.UID == "" {
		return "", &ValidationError{Field: "deployed app json", Value: raw, Reason: "missing vmdetails.uid"}
	}
	return doc.VMDetails.UID, nil
}
